package metric

import (
	"github.com/miu200521358/mlib_go/pkg/mmath"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const degenerateEps = 1e-8

// alignSimilarity solves the orthogonal Procrustes problem: the rotation,
// uniform scale and translation that map pred onto gt with least squared
// error, and returns pred under that transform. Input sets must have equal
// length (checked by the callers).
func alignSimilarity(pred, gt []*mmath.MVec3) ([]*mmath.MVec3, error) {
	mu1 := centroid(pred)
	mu2 := centroid(gt)

	// Spread of the prediction and the 3x3 cross-covariance.
	var1 := 0.0
	cov := mat.NewDense(3, 3, nil)
	for i, p := range pred {
		x1 := p.Subed(mu1)
		x2 := gt[i].Subed(mu2)
		var1 += x1.Dot(x1)
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				cov.Set(a, b, cov.At(a, b)+comp(x1, a)*comp(x2, b))
			}
		}
	}

	if var1 < degenerateEps {
		return nil, errors.Wrap(ErrDegenerate, "prediction has no spread")
	}

	var svd mat.SVD
	if ok := svd.Factorize(cov, mat.SVDFull); !ok {
		return nil, errors.Wrap(ErrDegenerate, "SVD of cross-covariance failed")
	}

	// A colinear joint set leaves the rotation about the common axis
	// unconstrained; the second singular value collapses in that case.
	sv := svd.Values(nil)
	if sv[0] < degenerateEps || sv[1] < degenerateEps*sv[0] {
		return nil, errors.Wrap(ErrDegenerate, "rank-deficient cross-covariance")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Constrain to a proper rotation: flip the last column of V if the
	// unconstrained optimum would be a reflection.
	if mat.Det(&u)*mat.Det(&v) < 0 {
		for a := 0; a < 3; a++ {
			v.Set(a, 2, -v.At(a, 2))
		}
	}

	var rot mat.Dense
	rot.Mul(&v, u.T())

	// Optimal uniform scale: trace(R * cov) over the prediction spread.
	trace := 0.0
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			trace += rot.At(a, b) * cov.At(b, a)
		}
	}
	scale := trace / var1

	trans := mu2.Subed(rotated(&rot, mu1).MuledScalar(scale))

	aligned := make([]*mmath.MVec3, len(pred))
	for i, p := range pred {
		aligned[i] = rotated(&rot, p).MuledScalar(scale).Added(trans)
	}
	return aligned, nil
}

func centroid(points []*mmath.MVec3) *mmath.MVec3 {
	sum := &mmath.MVec3{}
	for _, p := range points {
		sum = sum.Added(p)
	}
	return sum.DivedScalar(float64(len(points)))
}

func comp(v *mmath.MVec3, axis int) float64 {
	switch axis {
	case 0:
		return v.GetX()
	case 1:
		return v.GetY()
	default:
		return v.GetZ()
	}
}

func rotated(rot *mat.Dense, p *mmath.MVec3) *mmath.MVec3 {
	return &mmath.MVec3{
		rot.At(0, 0)*p.GetX() + rot.At(0, 1)*p.GetY() + rot.At(0, 2)*p.GetZ(),
		rot.At(1, 0)*p.GetX() + rot.At(1, 1)*p.GetY() + rot.At(1, 2)*p.GetZ(),
		rot.At(2, 0)*p.GetX() + rot.At(2, 1)*p.GetY() + rot.At(2, 2)*p.GetZ(),
	}
}
