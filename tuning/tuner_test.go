package tuning

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/courtsideml/grove/forest"
	"github.com/courtsideml/grove/pkg/errors"
	"github.com/courtsideml/grove/pkg/log"
)

// tuningDataset builds n samples where the target is 2*a + c and b is noise.
func tuningDataset(n int) forest.Dataset {
	gen := rand.New(rand.NewPCG(13, 1))
	ds := make(forest.Dataset, n)
	for i := range ds {
		a, b, c := gen.Float64(), gen.Float64(), gen.Float64()
		ds[i] = forest.Sample{
			Features: map[string]float64{"a": a, "b": b, "c": c},
			Target:   2*a + c,
		}
	}
	return ds
}

func quietTuner() (*Tuner, *log.TestLogger) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return NewTuner().WithLogger(logger), logger
}

func TestTuneEndToEnd(t *testing.T) {
	ds := tuningDataset(200)
	grid := ParamGrid{
		NumTrees:         []int{10},
		MaxDepths:        []int{8},
		MinSamplesSplits: []int{5},
		MinSamplesLeafs:  []int{2},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}

	tuner, _ := quietTuner()
	result, err := tuner.Tune(context.Background(), ds, grid)
	if err != nil {
		t.Fatalf("Tune() error: %v", err)
	}

	if len(result.Leaderboard) != 1 {
		t.Fatalf("leaderboard has %d entries, want 1", len(result.Leaderboard))
	}
	if result.Failures != 0 {
		t.Errorf("Failures = %d, want 0", result.Failures)
	}

	best := result.Best
	if best.Score < 0.9 {
		t.Errorf("held-out R² = %v, want >= 0.9 on noise-free data", best.Score)
	}
	if best.Score != best.TestMetrics.R2 {
		t.Errorf("Score (%v) must equal test R² (%v)", best.Score, best.TestMetrics.R2)
	}
	if best.TrainMetrics.R2 < best.TestMetrics.R2 {
		t.Errorf("train R² (%v) below test R² (%v)", best.TrainMetrics.R2, best.TestMetrics.R2)
	}
	if best.Model == nil {
		t.Fatal("best trial should carry its fitted model")
	}
	importance, err := best.Model.FeatureImportance()
	if err != nil {
		t.Fatalf("FeatureImportance() error: %v", err)
	}
	if importance["b"] >= importance["a"] || importance["b"] >= importance["c"] {
		t.Errorf("noise feature b should rank below a and c: %v", importance)
	}
	// The per-trial seed derives from the tuner seed and trial index.
	if best.Config.Seed != tuner.Seed {
		t.Errorf("trial 0 seed = %d, want tuner seed %d", best.Config.Seed, tuner.Seed)
	}
}

func TestTuneLeaderboardOrder(t *testing.T) {
	ds := tuningDataset(300)
	// Depth 1 stumps cannot model 2*a + c; deeper trees must rank above them.
	grid := ParamGrid{
		NumTrees:         []int{20},
		MaxDepths:        []int{1, 10},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{1},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}

	tuner, _ := quietTuner()
	result, err := tuner.Tune(context.Background(), ds, grid)
	if err != nil {
		t.Fatalf("Tune() error: %v", err)
	}

	if len(result.Leaderboard) != 2 {
		t.Fatalf("leaderboard has %d entries, want 2", len(result.Leaderboard))
	}
	for i := 1; i < len(result.Leaderboard); i++ {
		if result.Leaderboard[i].Score > result.Leaderboard[i-1].Score {
			t.Errorf("leaderboard not sorted descending at %d", i)
		}
	}
	if result.Best.Config.MaxDepth != 10 {
		t.Errorf("best depth = %d, want 10", result.Best.Config.MaxDepth)
	}
	if result.Best != result.Leaderboard[0] {
		t.Error("Best must be the leaderboard head")
	}
}

func TestTuneSkipsFailingTrials(t *testing.T) {
	ds := tuningDataset(200)
	// min_samples_leaf 5 with min_samples_split 2 fails validation; the other
	// configuration must still be evaluated.
	grid := ParamGrid{
		NumTrees:         []int{10},
		MaxDepths:        []int{8},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{1, 5},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}

	tuner, logger := quietTuner()
	result, err := tuner.Tune(context.Background(), ds, grid)
	if err != nil {
		t.Fatalf("Tune() error: %v", err)
	}

	if len(result.Leaderboard) != 1 {
		t.Fatalf("leaderboard has %d entries, want 1 surviving trial", len(result.Leaderboard))
	}
	if result.Failures != 1 {
		t.Errorf("Failures = %d, want 1", result.Failures)
	}
	if result.Best.Config.MinSamplesLeaf != 1 {
		t.Errorf("surviving config min_samples_leaf = %d, want 1", result.Best.Config.MinSamplesLeaf)
	}
	if !logger.ContainsMessage("trial failed, skipping") {
		t.Error("skipped trial should be logged")
	}
}

func TestTuneAllTrialsFailed(t *testing.T) {
	ds := tuningDataset(200)
	grid := ParamGrid{
		NumTrees:         []int{10},
		MaxDepths:        []int{8},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{5},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}

	tuner, _ := quietTuner()
	_, err := tuner.Tune(context.Background(), ds, grid)
	if !errors.Is(err, errors.ErrAllTrialsFailed) {
		t.Errorf("Tune() error = %v, want ErrAllTrialsFailed", err)
	}
}

func TestTuneEmptyGrid(t *testing.T) {
	tuner, _ := quietTuner()
	_, err := tuner.Tune(context.Background(), tuningDataset(50), ParamGrid{})
	if !errors.Is(err, errors.ErrEmptyGrid) {
		t.Errorf("Tune() error = %v, want ErrEmptyGrid", err)
	}
}

func TestTuneInvalidTrainFraction(t *testing.T) {
	grid := ParamGrid{
		NumTrees:         []int{10},
		MaxDepths:        []int{8},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{1},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}
	tuner, _ := quietTuner()
	tuner.WithTrainFraction(1.2)
	if _, err := tuner.Tune(context.Background(), tuningDataset(50), grid); err == nil {
		t.Error("Tune() should reject a train fraction outside (0, 1)")
	}
}

func TestTuneDatasetTooSmall(t *testing.T) {
	grid := ParamGrid{
		NumTrees:         []int{10},
		MaxDepths:        []int{8},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{1},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}
	tuner, _ := quietTuner()
	if _, err := tuner.Tune(context.Background(), tuningDataset(1), grid); err == nil {
		t.Error("Tune() should fail when the dataset cannot be split")
	}
}

func TestTuneCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid := ParamGrid{
		NumTrees:         []int{10},
		MaxDepths:        []int{8},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{1},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}
	tuner, _ := quietTuner()
	_, err := tuner.Tune(ctx, tuningDataset(100), grid)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Tune() error = %v, want context.Canceled", err)
	}
}

func TestTuneDeterministicAcrossWorkerCounts(t *testing.T) {
	ds := tuningDataset(200)
	grid := ParamGrid{
		NumTrees:         []int{10, 20},
		MaxDepths:        []int{6, 10},
		MinSamplesSplits: []int{2},
		MinSamplesLeafs:  []int{1},
		MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
	}

	run := func(workers int) *Result {
		tuner, _ := quietTuner()
		result, err := tuner.WithWorkers(workers).Tune(context.Background(), ds, grid)
		if err != nil {
			t.Fatalf("Tune() with %d workers error: %v", workers, err)
		}
		return result
	}

	serial := run(1)
	parallel := run(4)

	if len(serial.Leaderboard) != len(parallel.Leaderboard) {
		t.Fatalf("leaderboard sizes differ: %d vs %d", len(serial.Leaderboard), len(parallel.Leaderboard))
	}
	for i := range serial.Leaderboard {
		s, p := serial.Leaderboard[i], parallel.Leaderboard[i]
		if s.Index != p.Index || s.Score != p.Score {
			t.Errorf("entry %d differs across worker counts: (%d, %v) vs (%d, %v)",
				i, s.Index, s.Score, p.Index, p.Score)
		}
	}
}
