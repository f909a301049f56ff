package ransac

import (
	"math"
	"math/rand"

	"go.viam.com/robustpose/spatialmath"
)

// minSampleSize is the number of correspondences drawn to fit a candidate pose.
const minSampleSize = 4

// workerResult is what a worker reports once it is done.
type workerResult struct {
	found     bool
	pose      *spatialmath.Transform
	consensus []int
	trials    int
}

// worker runs the sampling loop over its own share of the trial budget. A worker is only ever
// used from one goroutine; points is shared read only between workers.
type worker struct {
	cfg       *Config
	solver    Solver
	points    []spatialmath.Correspondence
	maxTrials int
	rng       *rand.Rand

	// perm is a scratch permutation of point indices reused by every trial.
	perm []int

	trials        int
	found         bool
	bestPose      *spatialmath.Transform
	bestConsensus []int
}

func newWorker(cfg *Config, solver Solver, points []spatialmath.Correspondence, seed int64, maxTrials int) *worker {
	perm := make([]int, len(points))
	for i := range perm {
		perm[i] = i
	}
	return &worker{
		cfg:       cfg,
		solver:    solver,
		points:    points,
		maxTrials: maxTrials,
		//nolint:gosec
		rng:  rand.New(rand.NewSource(seed)),
		perm: perm,
	}
}

// done returns true once the trial budget is spent or the consensus target is reached.
func (w *worker) done() bool {
	return w.trials >= w.maxTrials || len(w.bestConsensus) >= w.cfg.InlierConsensus
}

// run executes trials until done.
func (w *worker) run() {
	for !w.done() {
		w.step()
	}
}

// step executes a single trial unless the worker is already done.
func (w *worker) step() {
	if w.done() {
		return
	}
	w.trials++

	sample, ok := w.sample()
	if !ok {
		return
	}
	fit, err := w.solver.Solve(sample, false)
	if err != nil || fit == nil || math.IsNaN(fit.Residual) {
		return
	}
	if w.cfg.ValidityCheck != nil && !w.cfg.ValidityCheck(fit.Pose) {
		return
	}
	// Calibrated together with the default distance threshold.
	if r := math.Sqrt(fit.Residual) / minSampleSize; !(r < w.cfg.DistanceThreshold) {
		return
	}

	consensus := w.consensus(fit.Pose)
	if len(consensus) > len(w.bestConsensus) {
		w.found = true
		w.bestPose = fit.Pose
		w.bestConsensus = consensus
	}
}

// sample draws minSampleSize distinct points uniformly. With CheckDegenerate, points coinciding
// with an already drawn one are skipped; false is returned when the points run out first.
func (w *worker) sample() ([]spatialmath.Correspondence, bool) {
	sample := make([]spatialmath.Correspondence, 0, minSampleSize)
	n := len(w.perm)
	for k := 0; k < n && len(sample) < minSampleSize; k++ {
		j := k + w.rng.Intn(n-k)
		w.perm[k], w.perm[j] = w.perm[j], w.perm[k]
		p := w.points[w.perm[k]]
		if w.cfg.CheckDegenerate && p.CoincidesWithAny(sample) {
			continue
		}
		sample = append(sample, p)
	}
	return sample, len(sample) == minSampleSize
}

// consensus returns the indices of the points reprojecting within the distance threshold under cMo.
func (w *worker) consensus(cMo *spatialmath.Transform) []int {
	var consensus []int
	var accepted []spatialmath.Correspondence
	for i, p := range w.points {
		if !(spatialmath.ReprojectionError(cMo, p) < w.cfg.DistanceThreshold) {
			continue
		}
		if w.cfg.CheckDegenerate {
			if p.CoincidesWithAny(accepted) {
				continue
			}
			accepted = append(accepted, p)
		}
		consensus = append(consensus, i)
	}
	return consensus
}

func (w *worker) result() workerResult {
	return workerResult{
		found:     w.found,
		pose:      w.bestPose,
		consensus: w.bestConsensus,
		trials:    w.trials,
	}
}
