package forest

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/courtsideml/grove/core/parallel"
	"github.com/courtsideml/grove/pkg/errors"
)

// Forest is a bootstrap-aggregated ensemble of regression trees together with
// the feature schema its trees were grown against. A fitted forest is never
// mutated; refitting produces a fresh value.
type Forest struct {
	Trees  []Tree
	Schema *FeatureSchema
	Config Config
}

// NewForest returns an unfitted forest with the given hyperparameters.
// Zero-valued fields fall back to DefaultConfig.
func NewForest(cfg Config) *Forest {
	return &Forest{Config: cfg.withDefaults()}
}

// Fit derives the feature schema from the dataset and grows the ensemble.
func (f *Forest) Fit(ds Dataset) error {
	schema, err := SchemaFromDataset(ds)
	if err != nil {
		return err
	}
	X, y, err := ds.Matrices(schema)
	if err != nil {
		return err
	}
	return f.FitMatrices(X, y, schema)
}

// FitMatrices grows the ensemble on an already-vectorized training set. The
// schema must describe the columns of X. Each of the NumTrees trees is grown
// on its own bootstrap resample (with replacement, same size as the training
// set) with per-node random feature subsets; tree i derives its random stream
// from (Config.Seed, i), so identical seeds yield identical forests no matter
// how the work is scheduled.
func (f *Forest) FitMatrices(X *mat.Dense, y *mat.VecDense, schema *FeatureSchema) error {
	if err := f.Config.Validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.ErrEmptyData
	}
	if y.Len() != rows {
		return errors.NewDimensionError("Forest.Fit", rows, y.Len(), 0)
	}
	if schema == nil || schema.Len() != cols {
		got := -1
		if schema != nil {
			got = schema.Len()
		}
		return errors.NewDimensionError("Forest.Fit", cols, got, 1)
	}

	cfg := f.Config
	params := growthParams{
		maxDepth:        cfg.MaxDepth,
		minSamplesSplit: cfg.MinSamplesSplit,
		minSamplesLeaf:  cfg.MinSamplesLeaf,
		subsetSize:      cfg.subsetSize(cols),
		maxThresholds:   cfg.MaxThresholds,
	}

	trees := make([]Tree, cfg.NumTrees)
	parallel.Parallelize(cfg.NumTrees, func(start, end int) {
		for i := start; i < end; i++ {
			rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(i)+1))
			indices := bootstrapIndices(rng, rows)
			trees[i] = growTree(X, y, indices, params, rng)
		}
	})

	f.Trees = trees
	f.Schema = schema
	f.Config = cfg
	return nil
}

// bootstrapIndices draws n sample indices uniformly with replacement.
func bootstrapIndices(rng *rand.Rand, n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = rng.IntN(n)
	}
	return indices
}

// Predict maps each feature vector through the schema and returns the
// unweighted mean of the tree predictions. A vector missing a schema feature
// is rejected with a SchemaMismatchError.
func (f *Forest) Predict(vectors []map[string]float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.NewNotFittedError("Forest", "Predict")
	}
	out := make([]float64, len(vectors))
	for i, fv := range vectors {
		row, err := f.Schema.Vectorize("Forest.Predict", fv)
		if err != nil {
			return nil, err
		}
		out[i] = f.predictRow(row)
	}
	return out, nil
}

// PredictMatrix predicts over an already-vectorized design matrix whose
// columns follow the forest's schema order.
func (f *Forest) PredictMatrix(X *mat.Dense) (*mat.VecDense, error) {
	if len(f.Trees) == 0 {
		return nil, errors.NewNotFittedError("Forest", "PredictMatrix")
	}
	rows, cols := X.Dims()
	if cols != f.Schema.Len() {
		return nil, errors.NewDimensionError("Forest.PredictMatrix", f.Schema.Len(), cols, 1)
	}
	out := mat.NewVecDense(rows, nil)
	parallel.ParallelizeWithThreshold(rows, 1024, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out.SetVec(i, f.predictRow(row))
		}
	})
	return out, nil
}

func (f *Forest) predictRow(features []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(features)
	}
	return sum / float64(len(f.Trees))
}

// FeatureImportance reports, for every schema feature, the number of internal
// nodes across all trees that split on it, divided by the tree count. This is
// a split-frequency proxy for importance, not an impurity-reduction-weighted
// score; downstream comparisons assume exactly this definition.
func (f *Forest) FeatureImportance() (map[string]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.NewNotFittedError("Forest", "FeatureImportance")
	}
	counts := make([]float64, f.Schema.Len())
	for i := range f.Trees {
		for j := range f.Trees[i].Nodes {
			node := &f.Trees[i].Nodes[j]
			if !node.IsLeaf() {
				counts[node.SplitFeature]++
			}
		}
	}
	importance := make(map[string]float64, len(counts))
	for i, name := range f.Schema.Names() {
		importance[name] = counts[i] / float64(len(f.Trees))
	}
	return importance, nil
}
