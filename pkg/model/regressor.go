package model

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/miu200521358/mlib_go/pkg/mmath"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// JointRegressor is the fixed linear map from SMPL mesh vertices to the 17
// H36M joints. The weight matrix is loaded from its JSON artifact on first
// use, exactly once, and is read-only afterwards; one instance is created by
// the caller and shared by the whole run.
type JointRegressor struct {
	path    string
	once    sync.Once
	loadErr error
	weights *mat.Dense
	nJoints int
	nVerts  int
}

type regressorFile struct {
	Joints   int         `json:"joints"`
	Vertices int         `json:"vertices"`
	Weights  [][]float64 `json:"weights"`
}

func NewJointRegressor(path string) *JointRegressor {
	return &JointRegressor{path: path}
}

func (r *JointRegressor) load() {
	file, err := os.Open(r.path)
	if err != nil {
		r.loadErr = errors.Wrapf(err, "failed to open regressor %s", r.path)
		return
	}
	defer file.Close()

	rf := new(regressorFile)
	if err := json.NewDecoder(file).Decode(rf); err != nil {
		r.loadErr = errors.Wrapf(err, "failed to decode regressor %s", r.path)
		return
	}
	if rf.Joints <= 0 || rf.Vertices <= 0 || len(rf.Weights) != rf.Joints {
		r.loadErr = errors.Errorf("malformed regressor %s: %d joints, %d weight rows", r.path, rf.Joints, len(rf.Weights))
		return
	}

	weights := mat.NewDense(rf.Joints, rf.Vertices, nil)
	for j, row := range rf.Weights {
		if len(row) != rf.Vertices {
			r.loadErr = errors.Errorf("malformed regressor %s: row %d has %d weights, want %d", r.path, j, len(row), rf.Vertices)
			return
		}
		weights.SetRow(j, row)
	}

	r.weights = weights
	r.nJoints = rf.Joints
	r.nVerts = rf.Vertices
}

// Regress maps mesh vertices to joint positions.
func (r *JointRegressor) Regress(vertices [][3]float64) ([]*mmath.MVec3, error) {
	r.once.Do(r.load)
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if len(vertices) != r.nVerts {
		return nil, errors.Errorf("vertex count mismatch: got %d, regressor expects %d", len(vertices), r.nVerts)
	}

	verts := mat.NewDense(r.nVerts, 3, nil)
	for i, v := range vertices {
		verts.SetRow(i, v[:])
	}

	var joints mat.Dense
	joints.Mul(r.weights, verts)

	out := make([]*mmath.MVec3, r.nJoints)
	for j := 0; j < r.nJoints; j++ {
		out[j] = &mmath.MVec3{joints.At(j, 0), joints.At(j, 1), joints.At(j, 2)}
	}
	return out, nil
}
