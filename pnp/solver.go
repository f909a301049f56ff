// Package pnp computes the pose of a camera from 2D-3D point correspondences (the
// perspective-n-point problem).
//
// The solver first gets an initial guess in closed form, using the Dementhon scaled
// orthographic iteration when the object points span 3D and a plane homography when they are
// coplanar. The poses solving Grunert's three point problem on some point triplets compete with
// that guess, which keeps minimal samples from converging to a mirrored pose. It then minimizes the reprojection error with a damped Gauss-Newton loop on SE(3),
// which is the virtual visual servoing formulation of pose estimation.
package pnp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/robustpose/spatialmath"
)

// MinPoints is the minimal number of correspondences needed to compute a pose.
const MinPoints = 4

var (
	// ErrNotEnoughPoints is returned when fewer than MinPoints correspondences are given.
	ErrNotEnoughPoints = errors.New("at least 4 points are required to compute a pose")
	// ErrDegenerate is returned when the configuration does not constrain a pose or the
	// computation produced non-finite values.
	ErrDegenerate = errors.New("degenerate point configuration")
)

// Fit is a pose computed from a set of correspondences.
type Fit struct {
	// Pose maps world coordinates into the camera frame (cMo).
	Pose *spatialmath.Transform
	// Residual is the sum over all points of the squared reprojection error.
	Residual float64
	// Covariance is the 6x6 covariance of the pose parameters (translation then rotation
	// vector, both in the camera frame). Only set when requested.
	Covariance *mat.SymDense
}

// Solver computes poses. The zero value is not usable; use NewSolver.
type Solver struct {
	// MaxIterations bounds the Gauss-Newton minimization.
	MaxIterations int
	// Tolerance stops the minimization once the parameter update norm falls below it.
	Tolerance float64
}

// NewSolver returns a Solver with default minimization settings.
func NewSolver() *Solver {
	return &Solver{MaxIterations: 100, Tolerance: 1e-12}
}

// Solve computes the pose that best explains all points. When computeCovariance is set the
// returned Fit also carries the covariance of the estimate.
func (s *Solver) Solve(points []spatialmath.Correspondence, computeCovariance bool) (*Fit, error) {
	if len(points) < MinPoints {
		return nil, ErrNotEnoughPoints
	}
	init, err := initialPose(points)
	if err != nil {
		return nil, err
	}
	pose, jtj, err := s.minimize(init, points)
	if err != nil {
		return nil, err
	}
	if err := pose.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrDegenerate, err.Error())
	}
	fit := &Fit{Pose: pose, Residual: Residual(pose, points)}
	if math.IsNaN(fit.Residual) || math.IsInf(fit.Residual, 0) {
		return nil, errors.Wrap(ErrDegenerate, "non-finite residual")
	}
	if computeCovariance {
		cov, err := covariance(jtj, fit.Residual, len(points))
		if err != nil {
			return nil, err
		}
		fit.Covariance = cov
	}
	return fit, nil
}

// Residual returns the sum over points of the squared reprojection error under cMo. Points that
// fall behind the camera make the residual NaN.
func Residual(cMo *spatialmath.Transform, points []spatialmath.Correspondence) float64 {
	var sum float64
	for _, p := range points {
		d := spatialmath.Project(cMo, p.World).Sub(p.Image)
		sum += d.X*d.X + d.Y*d.Y
	}
	return sum
}

// covariance returns sigma^2 (J^T J)^-1 with sigma^2 estimated from the residual and the
// 2n - 6 degrees of freedom left over by the fit.
func covariance(jtj *mat.SymDense, residual float64, n int) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(jtj); !ok {
		return nil, errors.Wrap(ErrDegenerate, "normal equations are not positive definite")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, errors.Wrap(ErrDegenerate, err.Error())
	}
	sigma2 := residual / float64(2*n-6)
	inv.ScaleSym(sigma2, &inv)
	return &inv, nil
}
