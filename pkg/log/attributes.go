// Package log defines standard attribute keys for training operations.
//
// Using these keys consistently enables structured analysis and filtering of
// logs produced during forest training and hyperparameter tuning. The keys
// follow a hierarchical naming convention (e.g. "model.name", "data.samples").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "ForestRegressor", "Forest"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "tune"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "forest", "tuning", "metrics"
	ComponentKey = "ml.component"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TrainSamplesKey and TestSamplesKey record the holdout split sizes.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Tuning Context
const (
	// TrialKey is the index of a configuration in grid enumeration order.
	TrialKey = "tuning.trial"

	// TrialsKey is the total number of configurations in the grid.
	TrialsKey = "tuning.trials"

	// ScoreKey records a trial's selection score (holdout R²).
	ScoreKey = "tuning.score"

	// ConfigKey records the hyperparameter configuration of a trial.
	ConfigKey = "tuning.config"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// TreesKey records the number of trees grown.
	TreesKey = "model.trees"
)
