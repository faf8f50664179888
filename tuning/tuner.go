package tuning

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/courtsideml/grove/core/parallel"
	"github.com/courtsideml/grove/forest"
	"github.com/courtsideml/grove/metrics"
	"github.com/courtsideml/grove/pkg/errors"
	"github.com/courtsideml/grove/pkg/log"
)

// Trial is the outcome of evaluating one configuration from the grid.
type Trial struct {
	// Index is the configuration's position in grid enumeration order.
	Index int `json:"index"`
	// Config is the evaluated configuration, including the derived seed.
	Config forest.Config `json:"config"`
	// Model is the forest fitted on the training portion.
	Model *forest.Forest `json:"-"`
	// TrainMetrics are computed on the training portion itself.
	TrainMetrics metrics.Evaluation `json:"train_metrics"`
	// TestMetrics are computed on the held-out portion.
	TestMetrics metrics.Evaluation `json:"test_metrics"`
	// Score is the ranking criterion: test R².
	Score float64 `json:"score"`
}

// Result is the outcome of a full grid search.
type Result struct {
	// Best is the leaderboard's top entry.
	Best Trial `json:"best"`
	// Leaderboard holds every successful trial, best first. Ties keep grid
	// enumeration order.
	Leaderboard []Trial `json:"leaderboard"`
	// Failures counts configurations that errored and were skipped.
	Failures int `json:"failures"`
}

// Tuner runs an exhaustive grid search with a chronological holdout split:
// the first TrainFraction of the dataset trains each candidate, the remainder
// scores it. Trials run concurrently; a failing configuration is logged and
// skipped rather than aborting the search.
type Tuner struct {
	// TrainFraction is the leading share of the dataset used for training.
	TrainFraction float64
	// Seed derives per-trial seeds so reruns reproduce every trial exactly.
	Seed int64
	// Workers bounds trial concurrency. Zero means GOMAXPROCS.
	Workers int

	logger log.Logger
}

// NewTuner creates a Tuner with the default 80/20 split and seed 42.
func NewTuner() *Tuner {
	return &Tuner{
		TrainFraction: 0.8,
		Seed:          42,
		logger:        log.GetLoggerWithName("tuning"),
	}
}

// WithTrainFraction sets the leading share of the dataset used for training.
func (t *Tuner) WithTrainFraction(fraction float64) *Tuner {
	t.TrainFraction = fraction
	return t
}

// WithSeed sets the base seed that per-trial seeds are derived from.
func (t *Tuner) WithSeed(seed int64) *Tuner {
	t.Seed = seed
	return t
}

// WithWorkers bounds how many trials run concurrently.
func (t *Tuner) WithWorkers(n int) *Tuner {
	t.Workers = n
	return t
}

// WithLogger replaces the tuner's logger. Useful in tests.
func (t *Tuner) WithLogger(logger log.Logger) *Tuner {
	t.logger = logger
	return t
}

// Tune evaluates every configuration in the grid against a single
// chronological split of ds and returns successful trials ranked by
// descending test R². It fails only when the grid or dataset is unusable,
// the context is cancelled, or every trial fails.
func (t *Tuner) Tune(ctx context.Context, ds forest.Dataset, grid ParamGrid) (*Result, error) {
	start := time.Now()

	configs, err := grid.Combinations()
	if err != nil {
		return nil, err
	}
	if t.TrainFraction <= 0 || t.TrainFraction >= 1 {
		return nil, errors.NewValueError("Tuner.Tune", "train fraction must be in (0, 1)")
	}

	// One split, shared by every trial: candidates are compared on
	// identical data.
	train, test, err := ds.Split(t.TrainFraction)
	if err != nil {
		return nil, err
	}
	schema, err := forest.SchemaFromDataset(train)
	if err != nil {
		return nil, err
	}
	trainX, trainY, err := train.Matrices(schema)
	if err != nil {
		return nil, err
	}
	testX, testY, err := test.Matrices(schema)
	if err != nil {
		return nil, err
	}

	t.logger.Info("starting grid search",
		log.TrialsKey, len(configs),
		log.TrainSamplesKey, len(train),
		log.TestSamplesKey, len(test),
		log.FeaturesKey, schema.Len(),
	)

	var (
		mu        sync.Mutex
		trials    []Trial
		failures  int
		cancelled bool
	)

	workers := t.Workers
	if workers <= 0 || workers > len(configs) {
		workers = len(configs)
	}
	parallel.ForEach(len(configs), workers, func(i int) {
		if ctx.Err() != nil {
			mu.Lock()
			cancelled = true
			mu.Unlock()
			return
		}

		cfg := configs[i]
		cfg.Seed = t.Seed + int64(i)

		trial, trialErr := t.runTrial(i, cfg, schema, trainX, trainY, testX, testY)

		mu.Lock()
		defer mu.Unlock()
		if trialErr != nil {
			failures++
			t.logger.Warn("trial failed, skipping", trialErr,
				log.TrialKey, i,
				log.ConfigKey, cfg,
			)
			return
		}
		t.logger.Debug("trial finished",
			log.TrialKey, i,
			log.ScoreKey, trial.Score,
		)
		trials = append(trials, trial)
	})

	if cancelled || ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "tuning: grid search cancelled")
	}
	if len(trials) == 0 {
		return nil, errors.Wrapf(errors.ErrAllTrialsFailed, "tuning: %d configurations", len(configs))
	}

	// Rank by descending test R²; the pre-sort by index plus stable sort
	// keeps enumeration order among ties.
	sort.Slice(trials, func(a, b int) bool { return trials[a].Index < trials[b].Index })
	sort.SliceStable(trials, func(a, b int) bool { return trials[a].Score > trials[b].Score })

	t.logger.Info("grid search complete",
		log.TrialsKey, len(configs),
		log.ScoreKey, trials[0].Score,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &Result{
		Best:        trials[0],
		Leaderboard: trials,
		Failures:    failures,
	}, nil
}

// runTrial fits one configuration and scores it on both portions. Panics in
// tree growth are converted to errors so one bad configuration cannot take
// down the search.
func (t *Tuner) runTrial(index int, cfg forest.Config, schema *forest.FeatureSchema, trainX *mat.Dense, trainY *mat.VecDense, testX *mat.Dense, testY *mat.VecDense) (Trial, error) {
	var trial Trial
	err := errors.SafeExecute("tuning.runTrial", func() error {
		model := forest.NewForest(cfg)
		if err := model.FitMatrices(trainX, trainY, schema); err != nil {
			return err
		}

		trainPred, err := model.PredictMatrix(trainX)
		if err != nil {
			return err
		}
		testPred, err := model.PredictMatrix(testX)
		if err != nil {
			return err
		}

		trainEval, err := metrics.Evaluate(vecSlice(trainY), vecSlice(trainPred))
		if err != nil {
			return err
		}
		testEval, err := metrics.Evaluate(vecSlice(testY), vecSlice(testPred))
		if err != nil {
			return err
		}

		trial = Trial{
			Index:        index,
			Config:       model.Config,
			Model:        model,
			TrainMetrics: trainEval,
			TestMetrics:  testEval,
			Score:        testEval.R2,
		}
		return nil
	})
	return trial, err
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
