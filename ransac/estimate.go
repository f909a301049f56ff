// Package ransac estimates the pose of a camera from 2D-3D correspondences polluted by outliers.
//
// Minimal samples of four correspondences are drawn at random and fitted; the candidate pose
// agreeing with the most correspondences wins and is refined over all of them. The trial budget
// can be split over parallel workers, each with its own deterministic random stream.
package ransac

import (
	"context"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/robustpose/logging"
	"go.viam.com/robustpose/pnp"
	"go.viam.com/robustpose/spatialmath"
	"go.viam.com/robustpose/utils"
)

// Solver fits a pose to a set of correspondences. It must be safe for concurrent use.
type Solver interface {
	Solve(points []spatialmath.Correspondence, computeCovariance bool) (*pnp.Fit, error)
}

// Result is the outcome of a robust estimation.
type Result struct {
	Found bool
	// Pose maps world coordinates into the camera frame.
	Pose *spatialmath.Transform
	// Inliers are indices into the input correspondences, in increasing order.
	Inliers    []int
	NumInliers int
	// Covariance is only set when requested in the Config.
	Covariance *mat.SymDense
	// Trials is the number of trials run by all workers.
	Trials            int
	ReprojectionError ErrorStats
}

// Estimator runs robust pose estimations with a fixed configuration.
type Estimator struct {
	cfg    Config
	solver Solver
	logger logging.Logger
}

// NewEstimator returns an Estimator for cfg. A nil solver uses the default pnp solver.
func NewEstimator(cfg Config, solver Solver, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate("ransac"); err != nil {
		return nil, err
	}
	if solver == nil {
		solver = pnp.NewSolver()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("ransac")
	}
	return &Estimator{cfg: cfg, solver: solver, logger: logger}, nil
}

// EstimatePose runs a single estimation over points with the default solver.
func EstimatePose(
	ctx context.Context,
	points []spatialmath.Correspondence,
	cfg Config,
	logger logging.Logger,
) (*Result, error) {
	est, err := NewEstimator(cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return est.Estimate(ctx, points)
}

// Estimate searches for the pose explaining the most correspondences and refines it over all
// of them. A search that finds nothing is reported with Found false and no error; a consensus
// that cannot be refined is reported with a *RefinementFailedError.
func (e *Estimator) Estimate(ctx context.Context, points []spatialmath.Correspondence) (*Result, error) {
	if len(points) < minSampleSize {
		return nil, NewInsufficientPointsError(len(points), "input")
	}

	candidates := points
	var indexMap []int
	if e.cfg.PrefilterDegenerate {
		candidates, indexMap = FilterDegenerate(points)
		e.logger.CDebugw(ctx, "filtered degenerate points", "before", len(points), "after", len(candidates))
		if len(candidates) < minSampleSize {
			return nil, NewInsufficientPointsError(len(candidates), "filtered")
		}
	} else {
		indexMap = lo.Range(len(points))
	}

	best, err := e.search(ctx, candidates)
	if err != nil {
		return nil, err
	}
	e.logger.CDebugw(ctx, "search done", "found", best.found, "consensus", len(best.consensus), "trials", best.trials)
	if !best.found {
		return &Result{Trials: best.trials}, nil
	}

	res, err := e.refine(points, lo.Map(best.consensus, func(i, _ int) int { return indexMap[i] }))
	if err != nil {
		e.logger.CDebugw(ctx, "refinement failed", "error", err)
		return &Result{Trials: best.trials}, err
	}
	res.Trials = best.trials
	return res, nil
}

// numWorkers resolves how many workers share the trial budget.
func (e *Estimator) numWorkers() int {
	if !e.cfg.Parallel {
		return 1
	}
	n := e.cfg.NumThreads
	if n <= 0 {
		n = utils.ParallelFactor
	}
	return max(1, min(n, e.cfg.MaxTrials))
}

// search runs the workers and returns the best of their results along with the total number
// of trials. Workers are never interrupted; a context cancelled by the time they are joined is
// reported as an error in both modes, and so is a panic of the solver or the validity check.
func (e *Estimator) search(ctx context.Context, points []spatialmath.Correspondence) (workerResult, error) {
	numWorkers := e.numWorkers()
	if numWorkers == 1 {
		w := newWorker(&e.cfg, e.solver, points, e.cfg.Seed, e.cfg.MaxTrials)
		if err := utils.CapturePanic(w.run); err != nil {
			return workerResult{}, err
		}
		return w.result(), ctx.Err()
	}

	results := make([]workerResult, numWorkers)
	err := utils.GroupWorkParallel(
		ctx,
		e.cfg.MaxTrials,
		numWorkers,
		func(numGroups int) {
			e.logger.CDebugf(ctx, "splitting %d trials over %d workers", e.cfg.MaxTrials, numGroups)
		},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			w := newWorker(&e.cfg, e.solver, points, e.cfg.Seed+int64(groupNum), groupSize)
			return func(memberNum, workNum int) {
					w.step()
				}, func() {
					results[groupNum] = w.result()
				}
		},
	)
	if err != nil {
		return workerResult{}, err
	}
	return mergeResults(results), nil
}

// mergeResults keeps the found result with the strictly largest consensus, the first one wins ties.
func mergeResults(results []workerResult) workerResult {
	trials := lo.SumBy(results, func(r workerResult) int { return r.trials })
	found := lo.Filter(results, func(r workerResult, _ int) bool { return r.found })
	if len(found) == 0 {
		return workerResult{trials: trials}
	}
	best := lo.MaxBy(found, func(a, b workerResult) bool {
		return len(a.consensus) > len(b.consensus)
	})
	best.trials = trials
	return best
}
