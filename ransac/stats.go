package ransac

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/robustpose/spatialmath"
)

// ErrorStats summarizes the reprojection errors of a set of correspondences under a pose.
type ErrorStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// NewErrorStats computes the reprojection error statistics of points under cMo.
func NewErrorStats(cMo *spatialmath.Transform, points []spatialmath.Correspondence) (ErrorStats, error) {
	data := stats.Float64Data(ReprojectionErrors(cMo, points))
	var s ErrorStats
	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return ErrorStats{}, errors.Wrap(err, "reprojection error mean")
	}
	if s.Median, err = data.Median(); err != nil {
		return ErrorStats{}, errors.Wrap(err, "reprojection error median")
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return ErrorStats{}, errors.Wrap(err, "reprojection error standard deviation")
	}
	if s.Max, err = data.Max(); err != nil {
		return ErrorStats{}, errors.Wrap(err, "reprojection error max")
	}
	return s, nil
}

// ReprojectionErrors returns the reprojection error of every point under cMo.
func ReprojectionErrors(cMo *spatialmath.Transform, points []spatialmath.Correspondence) []float64 {
	errs := make([]float64, len(points))
	for i, p := range points {
		errs[i] = spatialmath.ReprojectionError(cMo, p)
	}
	return errs
}
