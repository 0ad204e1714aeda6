package model

import (
	"github.com/pkg/errors"
)

// GtSource selects where the 3D ground-truth joints of a dataset come from.
type GtSource int

const (
	// GtKeypoints: the exporter provides pelvis-centered 3D keypoints directly
	// (Human3.6M, MPI-INF-3DHP).
	GtKeypoints GtSource = iota
	// GtMesh: ground-truth joints are regressed from gendered SMPL mesh
	// vertices (3DPW).
	GtMesh
)

// DatasetConfig is the per-dataset evaluation plan, resolved once at run
// start so the batch loop never branches on dataset names.
type DatasetConfig struct {
	Name      string
	NumJoints int
	GtSource  GtSource
	// JointMap reindexes the 17 regressed H36M joints into the evaluation set.
	JointMap []int
}

// h36mToJ17 maps the H36M regressor output into the 17-joint evaluation
// order; the first 14 entries are the common LSP-style joint set.
var h36mToJ17 = []int{6, 5, 4, 1, 2, 3, 16, 15, 14, 11, 12, 13, 8, 10, 0, 7, 9}

// ResolveDataset validates the dataset name and fixes the evaluation plan.
// Datasets without 3D ground truth are rejected here, before any batch is
// read.
func ResolveDataset(name string) (*DatasetConfig, error) {
	switch name {
	case "h36m-p1", "h36m-p2":
		return &DatasetConfig{Name: name, NumJoints: 14, GtSource: GtKeypoints, JointMap: h36mToJ17[:14]}, nil
	case "mpi-inf-3dhp":
		return &DatasetConfig{Name: name, NumJoints: 17, GtSource: GtKeypoints, JointMap: h36mToJ17}, nil
	case "3dpw", "3dpw-vibe":
		return &DatasetConfig{Name: name, NumJoints: 14, GtSource: GtMesh, JointMap: h36mToJ17[:14]}, nil
	case "lsp":
		return nil, errors.Errorf("dataset %s has no 3D ground truth (mask/part evaluation is not supported)", name)
	default:
		return nil, errors.Errorf("unknown dataset: %s", name)
	}
}
