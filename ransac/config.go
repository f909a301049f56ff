package ransac

import (
	"math"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/robustpose/spatialmath"
)

// Defaults used by NewDefaultConfig.
const (
	DefaultMaxTrials         = 1000
	DefaultInlierConsensus   = 4
	DefaultDistanceThreshold = 0.0001
)

// ValidityCheck lets the caller reject poses that are geometrically impossible for the
// application (e.g. a camera below the floor). It must be safe for concurrent use when
// estimation runs in parallel.
type ValidityCheck func(cMo *spatialmath.Transform) bool

// Config describes a robust pose estimation.
type Config struct {
	// MaxTrials bounds the number of sampling attempts over all workers.
	MaxTrials int `json:"max_trials"`
	// InlierConsensus stops the search once a consensus of this size is found.
	InlierConsensus int `json:"inlier_consensus"`
	// DistanceThreshold is the largest reprojection error, in normalized image units, of an inlier.
	DistanceThreshold float64 `json:"distance_threshold"`
	// CheckDegenerate rejects points coinciding with already sampled or accepted points in each trial.
	CheckDegenerate bool `json:"check_degenerate"`
	// PrefilterDegenerate removes duplicated correspondences once before the search.
	PrefilterDegenerate bool `json:"prefilter_degenerate"`
	Parallel            bool `json:"parallel"`
	// NumThreads is the number of parallel workers, 0 picks one from the available CPUs.
	NumThreads        int   `json:"num_threads"`
	ComputeCovariance bool  `json:"compute_covariance"`
	Seed              int64 `json:"seed"`

	ValidityCheck ValidityCheck `json:"-"`
}

// NewDefaultConfig returns the configuration used when none is given.
func NewDefaultConfig() Config {
	return Config{
		MaxTrials:         DefaultMaxTrials,
		InlierConsensus:   DefaultInlierConsensus,
		DistanceThreshold: DefaultDistanceThreshold,
	}
}

// NewConfigFromAttributes decodes attributes over the defaults and validates the result.
func NewConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	conf := NewDefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "failed to decode ransac config")
	}
	if err := conf.Validate("ransac"); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if cfg.MaxTrials <= 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("max_trials must be positive, got %d", cfg.MaxTrials)))
	}
	if cfg.InlierConsensus <= 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("inlier_consensus must be positive, got %d", cfg.InlierConsensus)))
	}
	if cfg.DistanceThreshold == 0 {
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "distance_threshold"))
	} else if cfg.DistanceThreshold < 0 || math.IsNaN(cfg.DistanceThreshold) || math.IsInf(cfg.DistanceThreshold, 0) {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("distance_threshold must be positive and finite, got %v", cfg.DistanceThreshold)))
	}
	if cfg.NumThreads < 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("num_threads cannot be negative, got %d", cfg.NumThreads)))
	}
	return err
}
