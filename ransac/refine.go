package ransac

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/robustpose/spatialmath"
)

// refine fits a pose to all the inliers, given as indices into points.
func (e *Estimator) refine(points []spatialmath.Correspondence, inliers []int) (*Result, error) {
	inliers = slices.Clone(inliers)
	slices.Sort(inliers)
	if len(inliers) < minSampleSize {
		return nil, &RefinementFailedError{
			NumInliers: len(inliers),
			Cause:      NewInsufficientPointsError(len(inliers), "refinement"),
		}
	}

	set := lo.Map(inliers, func(i, _ int) spatialmath.Correspondence { return points[i] })
	fit, err := e.solver.Solve(set, e.cfg.ComputeCovariance)
	if err != nil {
		return nil, &RefinementFailedError{NumInliers: len(inliers), Cause: errors.Wrap(ErrSolverFailure, err.Error())}
	}
	// A refined pose can fail the check even though its minimal sample passed.
	if e.cfg.ValidityCheck != nil && !e.cfg.ValidityCheck(fit.Pose) {
		return nil, &RefinementFailedError{NumInliers: len(inliers), Cause: ErrValidityRejected}
	}

	errStats, err := NewErrorStats(fit.Pose, set)
	if err != nil {
		return nil, &RefinementFailedError{NumInliers: len(inliers), Cause: err}
	}
	res := &Result{
		Found:             true,
		Pose:              fit.Pose,
		Inliers:           inliers,
		NumInliers:        len(inliers),
		ReprojectionError: errStats,
	}
	if e.cfg.ComputeCovariance {
		res.Covariance = fit.Covariance
	}
	return res, nil
}
