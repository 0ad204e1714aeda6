package model

import (
	"path/filepath"

	"github.com/miu200521358/mlib_go/pkg/mmath"
)

// Sample is one evaluation unit exported by the companion prediction tooling.
// Joint and vertex coordinates are in meters. Ground-truth keypoints (when
// present) are already pelvis-centered and in evaluation joint order; vertices
// are raw SMPL mesh vertices and go through the joint regressor.
type Sample struct {
	ImgName      string       `json:"img_name"`
	Gender       int          `json:"gender"`
	PredPose     []float64    `json:"pred_pose"`
	PredBetas    []float64    `json:"pred_betas"`
	PredCamera   []float64    `json:"pred_camera"`
	PredJoints   [][3]float64 `json:"pred_joints"`
	PredVertices [][3]float64 `json:"pred_vertices"`
	GtKeypoints  [][3]float64 `json:"gt_keypoints"`
	GtVertices   [][3]float64 `json:"gt_vertices"`
	CropCenter   [2]float64   `json:"crop_center"`
	CropScale    float64      `json:"crop_scale"`
}

// SeqName derives the logical sequence identifier: the name of the parent
// directory of the sample's source image path.
func (s *Sample) SeqName() string {
	return filepath.Base(filepath.Dir(s.ImgName))
}

// SampleFile is one per-sequence prediction export ("*_pred.json").
type SampleFile struct {
	Path    string
	Samples []*Sample `json:"samples"`
}

// ResultRecord is one row of the optional binary result artifact. Errors are
// in millimeters. The byte layout is consumed only by companion tooling.
type ResultRecord struct {
	ImgName    string       `msgpack:"img_name"`
	SeqName    string       `msgpack:"seq_name"`
	Gender     int          `msgpack:"gender"`
	PredPose   []float64    `msgpack:"pred_pose"`
	PredBetas  []float64    `msgpack:"pred_betas"`
	PredCamera []float64    `msgpack:"pred_camera"`
	PredJoints [][3]float64 `msgpack:"pred_joints"`
	GtJoints   [][3]float64 `msgpack:"gt_joints"`
	ErrorMpjpe float64      `msgpack:"error_mpjpe"`
	ErrorRecon float64      `msgpack:"error_recon"`
	CropCenter [2]float64   `msgpack:"crop_center"`
	CropScale  float64      `msgpack:"crop_scale"`
}

// ToVec3s converts raw coordinate triples into math vectors.
func ToVec3s(coords [][3]float64) []*mmath.MVec3 {
	vecs := make([]*mmath.MVec3, len(coords))
	for i, c := range coords {
		vecs[i] = &mmath.MVec3{c[0], c[1], c[2]}
	}
	return vecs
}

// FromVec3s converts math vectors back into raw coordinate triples.
func FromVec3s(vecs []*mmath.MVec3) [][3]float64 {
	coords := make([][3]float64, len(vecs))
	for i, v := range vecs {
		coords[i] = [3]float64{v.GetX(), v.GetY(), v.GetZ()}
	}
	return coords
}
