package forest

import (
	"math"

	"github.com/courtsideml/grove/pkg/errors"
)

// MaxFeaturesStrategy selects how many features each node considers for splitting.
type MaxFeaturesStrategy string

const (
	// MaxFeaturesSqrt considers ceil(sqrt(totalFeatures)) features per node.
	MaxFeaturesSqrt MaxFeaturesStrategy = "sqrt"
	// MaxFeaturesLog2 considers ceil(log2(totalFeatures)) features per node.
	MaxFeaturesLog2 MaxFeaturesStrategy = "log2"
	// MaxFeaturesFraction considers ceil(FeatureFraction*totalFeatures) features per node.
	MaxFeaturesFraction MaxFeaturesStrategy = "fraction"
)

// Config contains all hyperparameters of a forest.
type Config struct {
	// Ensemble size
	NumTrees int `json:"num_trees"`

	// Tree growth limits
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`

	// Feature subsampling
	MaxFeatures     MaxFeaturesStrategy `json:"max_features"`
	FeatureFraction float64             `json:"feature_fraction"`

	// Split search. Candidate thresholds per feature are strided down to at
	// most MaxThresholds midpoints; exhaustive search would change both the
	// runtime and the resulting splits.
	MaxThresholds int `json:"max_thresholds"`

	// Seed drives bootstrap resampling and per-node feature draws. Identical
	// seeds yield identical forests.
	Seed int64 `json:"seed"`
}

// hardDepthCap bounds tree growth even when MaxDepth is unset or negative.
const hardDepthCap = 25

// DefaultConfig returns the default forest hyperparameters.
func DefaultConfig() Config {
	return Config{
		NumTrees:        100,
		MaxDepth:        hardDepthCap,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     MaxFeaturesSqrt,
		FeatureFraction: 0.5,
		MaxThresholds:   20,
		Seed:            42,
	}
}

// withDefaults fills zero values with defaults and caps the depth.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.NumTrees <= 0 {
		c.NumTrees = def.NumTrees
	}
	if c.MaxDepth <= 0 || c.MaxDepth > hardDepthCap {
		c.MaxDepth = hardDepthCap
	}
	if c.MinSamplesSplit <= 0 {
		c.MinSamplesSplit = def.MinSamplesSplit
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if c.MaxFeatures == "" {
		c.MaxFeatures = def.MaxFeatures
	}
	if c.FeatureFraction <= 0 || c.FeatureFraction > 1 {
		c.FeatureFraction = def.FeatureFraction
	}
	if c.MaxThresholds <= 0 {
		c.MaxThresholds = def.MaxThresholds
	}
	return c
}

// Validate checks the configuration for values no defaulting can repair.
func (c Config) Validate() error {
	switch c.MaxFeatures {
	case "", MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesFraction:
	default:
		return errors.NewValidationError("max_features", "unknown strategy", string(c.MaxFeatures))
	}
	if c.MinSamplesLeaf > 0 && c.MinSamplesSplit > 0 && c.MinSamplesSplit < c.MinSamplesLeaf {
		return errors.NewValidationError("min_samples_split",
			"must be >= min_samples_leaf", c.MinSamplesSplit)
	}
	return nil
}

// subsetSize resolves the per-node feature subset size for totalFeatures.
func (c Config) subsetSize(totalFeatures int) int {
	var k int
	switch c.MaxFeatures {
	case MaxFeaturesLog2:
		k = int(math.Ceil(math.Log2(float64(totalFeatures))))
	case MaxFeaturesFraction:
		k = int(math.Ceil(c.FeatureFraction * float64(totalFeatures)))
	default: // MaxFeaturesSqrt
		k = int(math.Ceil(math.Sqrt(float64(totalFeatures))))
	}
	if k < 1 {
		k = 1
	}
	if k > totalFeatures {
		k = totalFeatures
	}
	return k
}
