package forest

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/courtsideml/grove/core/model"
	"github.com/courtsideml/grove/metrics"
	groveErrors "github.com/courtsideml/grove/pkg/errors"
	"github.com/courtsideml/grove/pkg/log"
)

// ForestRegressor is the estimator facade over Forest with a scikit-learn
// style API: chainable With* configuration, Fit/Predict/Score, and parameter
// maps for tooling.
type ForestRegressor struct {
	model.BaseEstimator

	// Model
	Model *Forest

	// Hyperparameters
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     MaxFeaturesStrategy
	FeatureFraction float64
	MaxThresholds   int
	RandomState     int64

	// FeatureNames pins the schema order explicitly; when empty the schema is
	// derived from the first training sample's sorted names.
	FeatureNames []string

	// Progress tracking
	ShowProgress bool
}

// NewForestRegressor creates a new regressor with default hyperparameters.
func NewForestRegressor() *ForestRegressor {
	cfg := DefaultConfig()
	return &ForestRegressor{
		NumTrees:        cfg.NumTrees,
		MaxDepth:        cfg.MaxDepth,
		MinSamplesSplit: cfg.MinSamplesSplit,
		MinSamplesLeaf:  cfg.MinSamplesLeaf,
		MaxFeatures:     cfg.MaxFeatures,
		FeatureFraction: cfg.FeatureFraction,
		MaxThresholds:   cfg.MaxThresholds,
		RandomState:     cfg.Seed,
	}
}

// WithNumTrees sets the ensemble size.
func (fr *ForestRegressor) WithNumTrees(n int) *ForestRegressor {
	fr.NumTrees = n
	return fr
}

// WithMaxDepth sets the maximum tree depth.
func (fr *ForestRegressor) WithMaxDepth(d int) *ForestRegressor {
	fr.MaxDepth = d
	return fr
}

// WithMinSamplesSplit sets the minimum partition size eligible for splitting.
func (fr *ForestRegressor) WithMinSamplesSplit(n int) *ForestRegressor {
	fr.MinSamplesSplit = n
	return fr
}

// WithMinSamplesLeaf sets the minimum sample count per child.
func (fr *ForestRegressor) WithMinSamplesLeaf(n int) *ForestRegressor {
	fr.MinSamplesLeaf = n
	return fr
}

// WithMaxFeatures sets the per-node feature subsampling strategy.
func (fr *ForestRegressor) WithMaxFeatures(s MaxFeaturesStrategy) *ForestRegressor {
	fr.MaxFeatures = s
	return fr
}

// WithRandomState sets the random seed.
func (fr *ForestRegressor) WithRandomState(seed int64) *ForestRegressor {
	fr.RandomState = seed
	return fr
}

// WithFeatureNames pins the feature schema order.
func (fr *ForestRegressor) WithFeatureNames(names ...string) *ForestRegressor {
	fr.FeatureNames = names
	return fr
}

// WithProgress enables progress logging.
func (fr *ForestRegressor) WithProgress() *ForestRegressor {
	fr.ShowProgress = true
	return fr
}

// Config assembles the forest configuration from the regressor fields.
func (fr *ForestRegressor) Config() Config {
	return Config{
		NumTrees:        fr.NumTrees,
		MaxDepth:        fr.MaxDepth,
		MinSamplesSplit: fr.MinSamplesSplit,
		MinSamplesLeaf:  fr.MinSamplesLeaf,
		MaxFeatures:     fr.MaxFeatures,
		FeatureFraction: fr.FeatureFraction,
		MaxThresholds:   fr.MaxThresholds,
		Seed:            fr.RandomState,
	}
}

// Fit trains the forest on the dataset.
func (fr *ForestRegressor) Fit(ds Dataset) (err error) {
	defer groveErrors.Recover(&err, "ForestRegressor.Fit")

	schema, err := fr.schemaFor(ds)
	if err != nil {
		return err
	}
	X, y, err := ds.Matrices(schema)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("forest.regressor")
	if fr.ShowProgress {
		logger.Info("Training ForestRegressor",
			log.OperationKey, "fit",
			log.SamplesKey, len(ds),
			log.FeaturesKey, schema.Len(),
			log.TreesKey, fr.NumTrees)
	}

	start := time.Now()
	forest := NewForest(fr.Config())
	if err := forest.FitMatrices(X, y, schema); err != nil {
		return err
	}

	fr.Model = forest
	fr.SetFitted()

	if fr.ShowProgress {
		logger.Info("Training completed",
			log.OperationKey, "fit",
			log.DurationMsKey, time.Since(start).Milliseconds())
	}
	return nil
}

func (fr *ForestRegressor) schemaFor(ds Dataset) (*FeatureSchema, error) {
	if len(fr.FeatureNames) > 0 {
		return NewFeatureSchema(fr.FeatureNames)
	}
	return SchemaFromDataset(ds)
}

// Predict returns one prediction per feature vector.
func (fr *ForestRegressor) Predict(vectors []map[string]float64) ([]float64, error) {
	if !fr.IsFitted() {
		return nil, groveErrors.NewNotFittedError("ForestRegressor", "Predict")
	}
	return fr.Model.Predict(vectors)
}

// PredictMatrix predicts over an already-vectorized design matrix.
func (fr *ForestRegressor) PredictMatrix(X *mat.Dense) (*mat.VecDense, error) {
	if !fr.IsFitted() {
		return nil, groveErrors.NewNotFittedError("ForestRegressor", "PredictMatrix")
	}
	return fr.Model.PredictMatrix(X)
}

// Score returns the coefficient of determination R² on the dataset.
func (fr *ForestRegressor) Score(ds Dataset) (float64, error) {
	if !fr.IsFitted() {
		return 0, groveErrors.NewNotFittedError("ForestRegressor", "Score")
	}
	predicted, err := fr.Model.Predict(ds.FeatureVectors())
	if err != nil {
		return 0, err
	}
	actual := ds.Targets()
	return metrics.R2Score(
		mat.NewVecDense(len(actual), actual),
		mat.NewVecDense(len(predicted), predicted),
	)
}

// GetFeatureImportance returns split-frequency feature importance scores.
func (fr *ForestRegressor) GetFeatureImportance() (map[string]float64, error) {
	if !fr.IsFitted() {
		return nil, groveErrors.NewNotFittedError("ForestRegressor", "GetFeatureImportance")
	}
	return fr.Model.FeatureImportance()
}

// GetParams returns the parameters of the regressor.
func (fr *ForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_trees":         fr.NumTrees,
		"max_depth":         fr.MaxDepth,
		"min_samples_split": fr.MinSamplesSplit,
		"min_samples_leaf":  fr.MinSamplesLeaf,
		"max_features":      string(fr.MaxFeatures),
		"feature_fraction":  fr.FeatureFraction,
		"max_thresholds":    fr.MaxThresholds,
		"random_state":      fr.RandomState,
	}
}

// SetParams sets the parameters of the regressor.
func (fr *ForestRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "num_trees", "n_estimators":
			if v, ok := value.(int); ok {
				fr.NumTrees = v
			}
		case "max_depth":
			if v, ok := value.(int); ok {
				fr.MaxDepth = v
			}
		case "min_samples_split":
			if v, ok := value.(int); ok {
				fr.MinSamplesSplit = v
			}
		case "min_samples_leaf":
			if v, ok := value.(int); ok {
				fr.MinSamplesLeaf = v
			}
		case "max_features":
			if v, ok := value.(string); ok {
				fr.MaxFeatures = MaxFeaturesStrategy(v)
			}
		case "feature_fraction":
			if v, ok := value.(float64); ok {
				fr.FeatureFraction = v
			}
		case "max_thresholds":
			if v, ok := value.(int); ok {
				fr.MaxThresholds = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				fr.RandomState = int64(v)
			case int64:
				fr.RandomState = v
			}
		}
	}
	return nil
}
