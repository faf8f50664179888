// Package tuning implements exhaustive grid search over forest
// hyperparameters with a chronological holdout split.
package tuning

import (
	"github.com/courtsideml/grove/forest"
	"github.com/courtsideml/grove/pkg/errors"
)

// ParamGrid lists candidate values per hyperparameter axis. Tune evaluates
// the full Cartesian product, so every axis must be non-empty.
type ParamGrid struct {
	NumTrees         []int                        `json:"num_trees"`
	MaxDepths        []int                        `json:"max_depths"`
	MinSamplesSplits []int                        `json:"min_samples_splits"`
	MinSamplesLeafs  []int                        `json:"min_samples_leafs"`
	MaxFeatures      []forest.MaxFeaturesStrategy `json:"max_features"`
}

// axes reports the grid axes in enumeration order, outermost first.
func (g ParamGrid) axes() []int {
	return []int{
		len(g.NumTrees),
		len(g.MaxDepths),
		len(g.MinSamplesSplits),
		len(g.MinSamplesLeafs),
		len(g.MaxFeatures),
	}
}

// Size returns the number of configurations in the grid.
func (g ParamGrid) Size() int {
	size := 1
	for _, n := range g.axes() {
		size *= n
	}
	return size
}

// Validate checks that every axis has at least one candidate value.
func (g ParamGrid) Validate() error {
	names := []string{"num_trees", "max_depths", "min_samples_splits", "min_samples_leafs", "max_features"}
	for i, n := range g.axes() {
		if n == 0 {
			return errors.Wrapf(errors.ErrEmptyGrid, "tuning: axis %q has no candidate values", names[i])
		}
	}
	return nil
}

// Combinations expands the grid into concrete configurations. The enumeration
// order is deterministic: NumTrees varies slowest, MaxFeatures fastest.
func (g ParamGrid) Combinations() ([]forest.Config, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	configs := make([]forest.Config, 0, g.Size())
	for _, trees := range g.NumTrees {
		for _, depth := range g.MaxDepths {
			for _, split := range g.MinSamplesSplits {
				for _, leaf := range g.MinSamplesLeafs {
					for _, strategy := range g.MaxFeatures {
						configs = append(configs, forest.Config{
							NumTrees:        trees,
							MaxDepth:        depth,
							MinSamplesSplit: split,
							MinSamplesLeaf:  leaf,
							MaxFeatures:     strategy,
						})
					}
				}
			}
		}
	}
	return configs, nil
}
