package pnp

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/robustpose/spatialmath"
)

const (
	initialDamping = 1e-3
	maxDamping     = 1e10
)

// minimize refines cMo by damped Gauss-Newton on the reprojection error. Updates are applied on
// the left: R <- exp(w) R, t <- exp(w) t + v, so the parameters live in the camera frame.
// It returns the refined pose and J^T J at the solution.
func (s *Solver) minimize(init *spatialmath.Transform, points []spatialmath.Correspondence) (
	*spatialmath.Transform, *mat.SymDense, error,
) {
	pose := init
	cost := Residual(pose, points)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, nil, errors.Wrap(ErrDegenerate, "initial pose puts points behind the camera")
	}

	damping := initialDamping
	for iter := 0; iter < s.MaxIterations && cost > 0; iter++ {
		jtj, jte := normalEquations(pose, points)
		damped := mat.NewSymDense(6, nil)
		damped.CopySym(jtj)
		for i := 0; i < 6; i++ {
			damped.SetSym(i, i, jtj.At(i, i)*(1+damping)+1e-15)
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(damped); !ok {
			damping *= 10
			if damping > maxDamping {
				break
			}
			continue
		}
		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, jte); err != nil {
			damping *= 10
			if damping > maxDamping {
				break
			}
			continue
		}
		delta.ScaleVec(-1, &delta)

		candidate := applyUpdate(pose, &delta)
		candidateCost := Residual(candidate, points)
		if math.IsNaN(candidateCost) || candidateCost > cost {
			damping *= 10
			if damping > maxDamping {
				break
			}
			continue
		}
		pose, cost = candidate, candidateCost
		damping = math.Max(damping/10, 1e-12)
		if mat.Norm(&delta, 2) < s.Tolerance {
			break
		}
	}
	jtj, _ := normalEquations(pose, points)
	return pose, jtj, nil
}

// normalEquations returns J^T J and J^T e for the stacked reprojection errors e.
func normalEquations(pose *spatialmath.Transform, points []spatialmath.Correspondence) (*mat.SymDense, *mat.VecDense) {
	jtj := mat.NewSymDense(6, nil)
	jte := mat.NewVecDense(6, nil)
	var rows [2][6]float64
	for _, p := range points {
		c := pose.Apply(p.World)
		iz := 1 / c.Z
		x, y := c.X*iz, c.Y*iz
		rows[0] = [6]float64{iz, 0, -x * iz, -x * y, 1 + x*x, -y}
		rows[1] = [6]float64{0, iz, -y * iz, -(1 + y*y), x * y, x}
		errs := [2]float64{x - p.Image.X, y - p.Image.Y}
		for k := 0; k < 2; k++ {
			for i := 0; i < 6; i++ {
				jte.SetVec(i, jte.AtVec(i)+rows[k][i]*errs[k])
				for j := i; j < 6; j++ {
					jtj.SetSym(i, j, jtj.At(i, j)+rows[k][i]*rows[k][j])
				}
			}
		}
	}
	return jtj, jte
}

// applyUpdate applies the twist (v, w) to the left of pose.
func applyUpdate(pose *spatialmath.Transform, delta *mat.VecDense) *spatialmath.Transform {
	v := r3.Vector{X: delta.AtVec(0), Y: delta.AtVec(1), Z: delta.AtVec(2)}
	w := r3.Vector{X: delta.AtVec(3), Y: delta.AtVec(4), Z: delta.AtVec(5)}
	step := spatialmath.NewTransform(spatialmath.RotationFromAxisAngle(w), v)
	return step.Compose(pose)
}
