// Package metric computes the 3D pose errors reported by the evaluation run
// (MPJPE and Procrustes-aligned reconstruction error) and aggregates them per
// sequence. All values are in the unit of the input joints; callers scale to
// millimeters for display.
package metric

import (
	"github.com/miu200521358/mlib_go/pkg/mmath"
	"github.com/pkg/errors"
)

// Kind identifies one tracked error metric.
type Kind int

const (
	Mpjpe Kind = iota
	ReconError
)

// Kinds lists all tracked metrics in report order.
var Kinds = []Kind{Mpjpe, ReconError}

func (k Kind) String() string {
	switch k {
	case Mpjpe:
		return "MPJPE"
	case ReconError:
		return "Recon Error"
	default:
		return "Unknown"
	}
}

// ErrDegenerate marks a joint configuration (all points coincident or
// colinear) whose similarity alignment has no stable solution. Such samples
// are excluded from aggregates instead of polluting them with NaN.
var ErrDegenerate = errors.New("degenerate joint configuration")

// MPJPE is the mean Euclidean distance between corresponding joints. Both
// sets are expected to be pelvis-centered by the caller.
func MPJPE(pred, gt []*mmath.MVec3) (float64, error) {
	if len(pred) == 0 || len(pred) != len(gt) {
		return 0, errors.Errorf("joint count mismatch: pred %d, gt %d", len(pred), len(gt))
	}

	total := 0.0
	for i, p := range pred {
		total += p.Distance(gt[i])
	}
	return total / float64(len(pred)), nil
}

// ReconstructionError is MPJPE after the best-fit similarity transform
// (rotation, uniform scale, translation) aligning pred to gt.
func ReconstructionError(pred, gt []*mmath.MVec3) (float64, error) {
	if len(pred) == 0 || len(pred) != len(gt) {
		return 0, errors.Errorf("joint count mismatch: pred %d, gt %d", len(pred), len(gt))
	}

	aligned, err := alignSimilarity(pred, gt)
	if err != nil {
		return 0, err
	}
	return MPJPE(aligned, gt)
}

// Errors computes one scalar per tracked metric for a single sample.
func Errors(pred, gt []*mmath.MVec3) (map[Kind]float64, error) {
	mpjpe, err := MPJPE(pred, gt)
	if err != nil {
		return nil, err
	}
	recon, err := ReconstructionError(pred, gt)
	if err != nil {
		return nil, err
	}
	return map[Kind]float64{Mpjpe: mpjpe, ReconError: recon}, nil
}

// Center subtracts the pivot joint from every joint, returning a new set.
func Center(joints []*mmath.MVec3, pivot int) []*mmath.MVec3 {
	origin := joints[pivot]
	centered := make([]*mmath.MVec3, len(joints))
	for i, j := range joints {
		centered[i] = j.Subed(origin)
	}
	return centered
}

// Reindex selects joints by index, e.g. the H36M-to-J14 evaluation subset.
func Reindex(joints []*mmath.MVec3, indices []int) ([]*mmath.MVec3, error) {
	out := make([]*mmath.MVec3, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(joints) {
			return nil, errors.Errorf("joint index %d out of range (have %d joints)", idx, len(joints))
		}
		out[i] = joints[idx]
	}
	return out, nil
}
