package ransac

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/robustpose/logging"
	"go.viam.com/robustpose/spatialmath"
)

// MatchConfig configures FindCorrespondenceMatch.
type MatchConfig struct {
	InlierConsensus   int
	DistanceThreshold float64
	MaxTrials         int
	Parallel          bool
	NumThreads        int
	Seed              int64
	ValidityCheck     ValidityCheck
}

// MatchResult is the outcome of FindCorrespondenceMatch.
type MatchResult struct {
	NumInliers int
	// Inliers are the matched pairs, in the order image point then world point.
	Inliers []spatialmath.Correspondence
	Pose    *spatialmath.Transform
	Found   bool
}

// CrossCorrespondences pairs every image point with every world point, image point major.
func CrossCorrespondences(pixels []r2.Point, world []r3.Vector) []spatialmath.Correspondence {
	return lo.FlatMap(pixels, func(px r2.Point, _ int) []spatialmath.Correspondence {
		return lo.Map(world, func(w r3.Vector, _ int) spatialmath.Correspondence {
			return spatialmath.Correspondence{World: w, Image: px}
		})
	})
}

// FindCorrespondenceMatch matches unpaired image and world points by running the estimation
// over every possible pairing. Since each point appears in many pairs, degenerate points are
// always checked during sampling.
func FindCorrespondenceMatch(
	ctx context.Context,
	pixels []r2.Point,
	world []r3.Vector,
	cfg MatchConfig,
	logger logging.Logger,
) (*MatchResult, error) {
	points := CrossCorrespondences(pixels, world)
	if len(points) < minSampleSize {
		return nil, NewInsufficientPointsError(len(points), "input")
	}

	est, err := NewEstimator(Config{
		MaxTrials:         cfg.MaxTrials,
		InlierConsensus:   cfg.InlierConsensus,
		DistanceThreshold: cfg.DistanceThreshold,
		CheckDegenerate:   true,
		Parallel:          cfg.Parallel,
		NumThreads:        cfg.NumThreads,
		Seed:              cfg.Seed,
		ValidityCheck:     cfg.ValidityCheck,
	}, nil, logger)
	if err != nil {
		return nil, err
	}
	res, err := est.Estimate(ctx, points)
	if err != nil {
		return nil, err
	}
	return &MatchResult{
		NumInliers: res.NumInliers,
		Inliers:    lo.Map(res.Inliers, func(i, _ int) spatialmath.Correspondence { return points[i] }),
		Pose:       res.Pose,
		Found:      res.Found,
	}, nil
}
