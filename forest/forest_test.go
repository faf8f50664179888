package forest

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/courtsideml/grove/pkg/errors"
)

// syntheticDataset builds n samples where the target is 2*a + c and b is
// pure noise the forest should learn to ignore.
func syntheticDataset(n int, seed uint64) Dataset {
	gen := rand.New(rand.NewPCG(seed, 1))
	ds := make(Dataset, n)
	for i := range ds {
		a, b, c := gen.Float64(), gen.Float64(), gen.Float64()
		ds[i] = Sample{
			Features: map[string]float64{"a": a, "b": b, "c": c},
			Target:   2*a + c,
		}
	}
	return ds
}

func TestForestFitPredict(t *testing.T) {
	ds := syntheticDataset(400, 3)
	f := NewForest(Config{NumTrees: 50, MaxDepth: 12, Seed: 7})
	if err := f.Fit(ds); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}

	tests := []struct {
		name     string
		features map[string]float64
		want     float64
	}{
		{"mid range", map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5}, 1.5},
		{"low range", map[string]float64{"a": 0.2, "b": 0.9, "c": 0.3}, 0.7},
		{"high range", map[string]float64{"a": 0.8, "b": 0.1, "c": 0.7}, 2.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Predict([]map[string]float64{tt.features})
			if err != nil {
				t.Fatalf("Predict() error: %v", err)
			}
			// Piecewise-constant fit of a smooth target: a loose band.
			if math.Abs(got[0]-tt.want) > 0.3 {
				t.Errorf("Predict() = %v, want %v ± 0.3", got[0], tt.want)
			}
		})
	}
}

func TestForestSeedDeterminism(t *testing.T) {
	ds := syntheticDataset(200, 5)
	query := []map[string]float64{
		{"a": 0.3, "b": 0.4, "c": 0.6},
		{"a": 0.9, "b": 0.1, "c": 0.2},
	}

	predict := func(seed int64) []float64 {
		f := NewForest(Config{NumTrees: 20, Seed: seed})
		if err := f.Fit(ds); err != nil {
			t.Fatalf("Fit() error: %v", err)
		}
		got, err := f.Predict(query)
		if err != nil {
			t.Fatalf("Predict() error: %v", err)
		}
		return got
	}

	first := predict(42)
	second := predict(42)
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("prediction %d differs across identical seeds: %v vs %v", i, first[i], second[i])
		}
	}

	other := predict(43)
	same := true
	for i := range first {
		if first[i] != other[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical predictions on all queries")
	}
}

func TestForestBootstrapIndependence(t *testing.T) {
	ds := syntheticDataset(300, 17)
	holdout := syntheticDataset(50, 18)
	query := holdout.FeatureVectors()

	predict := func(seed int64) []float64 {
		f := NewForest(Config{NumTrees: 50, MaxDepth: 10, Seed: seed})
		if err := f.Fit(ds); err != nil {
			t.Fatalf("Fit() error: %v", err)
		}
		got, err := f.Predict(query)
		if err != nil {
			t.Fatalf("Predict() error: %v", err)
		}
		return got
	}

	first := predict(1)
	second := predict(2)

	// Independent random draws must yield similar but not identical
	// ensembles: close on average, yet not bit-for-bit equal.
	var meanAbsDiff float64
	identical := true
	for i := range first {
		d := math.Abs(first[i] - second[i])
		meanAbsDiff += d
		if d != 0 {
			identical = false
		}
	}
	meanAbsDiff /= float64(len(first))

	if identical {
		t.Error("independently drawn forests should not predict identically everywhere")
	}
	if meanAbsDiff > 0.2 {
		t.Errorf("mean absolute prediction difference = %v, want a small band", meanAbsDiff)
	}
}

func TestForestFeatureImportance(t *testing.T) {
	ds := syntheticDataset(400, 11)
	f := NewForest(Config{NumTrees: 30, MaxDepth: 10, Seed: 1})
	if err := f.Fit(ds); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}

	importance, err := f.FeatureImportance()
	if err != nil {
		t.Fatalf("FeatureImportance() error: %v", err)
	}
	if len(importance) != 3 {
		t.Fatalf("importance has %d entries, want 3", len(importance))
	}
	// b carries no signal and should be split on least.
	if importance["b"] >= importance["a"] {
		t.Errorf("noise feature b (%v) ranked above signal feature a (%v)", importance["b"], importance["a"])
	}
	if importance["b"] >= importance["c"] {
		t.Errorf("noise feature b (%v) ranked above signal feature c (%v)", importance["b"], importance["c"])
	}
}

func TestForestPredictMissingFeature(t *testing.T) {
	ds := syntheticDataset(50, 2)
	f := NewForest(Config{NumTrees: 5, Seed: 1})
	if err := f.Fit(ds); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}

	_, err := f.Predict([]map[string]float64{{"a": 0.5, "c": 0.5}})
	if err == nil {
		t.Fatal("expected an error for a vector missing feature b")
	}
	var mismatch *errors.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error has wrong type: %T", err)
	}
	if len(mismatch.Missing) != 1 || mismatch.Missing[0] != "b" {
		t.Errorf("Missing = %v, want [b]", mismatch.Missing)
	}
}

func TestForestPredictNonFiniteFeature(t *testing.T) {
	ds := syntheticDataset(50, 2)
	f := NewForest(Config{NumTrees: 5, Seed: 1})
	if err := f.Fit(ds); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}

	_, err := f.Predict([]map[string]float64{{"a": math.NaN(), "b": 0.5, "c": 0.5}})
	if err == nil {
		t.Fatal("expected an error for a NaN feature value")
	}
}

func TestForestNotFitted(t *testing.T) {
	f := NewForest(DefaultConfig())

	if _, err := f.Predict([]map[string]float64{{"a": 1}}); err == nil {
		t.Error("Predict() on an unfitted forest should fail")
	}
	if _, err := f.FeatureImportance(); err == nil {
		t.Error("FeatureImportance() on an unfitted forest should fail")
	}

	_, err := f.Predict(nil)
	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Errorf("error has wrong type: %T", err)
	}
}

func TestForestFitEmptyDataset(t *testing.T) {
	f := NewForest(DefaultConfig())
	if err := f.Fit(Dataset{}); err == nil {
		t.Error("Fit() on an empty dataset should fail")
	}
}

func TestForestFitInvalidConfig(t *testing.T) {
	ds := syntheticDataset(50, 2)
	f := NewForest(Config{NumTrees: 5, MinSamplesSplit: 2, MinSamplesLeaf: 5})
	if err := f.Fit(ds); err == nil {
		t.Error("Fit() with min_samples_split < min_samples_leaf should fail")
	}
}
