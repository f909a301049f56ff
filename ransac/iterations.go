package ransac

import (
	"math"
)

// nullEpsilon is the outlier ratio under which the data is treated as outlier free.
const nullEpsilon = 1e-3

// TrialCount returns the number of trials needed to draw at least one outlier free sample of
// sampleSize points with the given probability, when a fraction epsilon of the points are
// outliers. Both ratios are clamped to [0, 1] and the result is capped at maxIterations, which
// is unbounded when not positive. When no finite number of trials can succeed it returns 0 and
// ErrDegenerateConfiguration.
func TrialCount(probability, epsilon float64, sampleSize, maxIterations int) (int, error) {
	probability = math.Min(math.Max(probability, 0), 1)
	epsilon = math.Min(math.Max(epsilon, 0), 1)

	if math.Abs(epsilon) < nullEpsilon {
		return 1, nil
	}
	if maxIterations <= 0 {
		maxIterations = math.MaxInt32
	}

	logval := math.Log1p(-math.Pow(1-epsilon, float64(sampleSize)))
	if math.Abs(logval) < machineEpsilon {
		return 0, ErrDegenerateConfiguration
	}
	n := math.Log(math.Max(1-probability, machineEpsilon)) / logval
	if logval < 0 && n < float64(maxIterations) {
		return int(math.Ceil(n)), nil
	}
	return maxIterations, nil
}

// machineEpsilon is the difference between 1 and the next float64.
var machineEpsilon = math.Nextafter(1, 2) - 1
