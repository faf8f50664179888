// Package grove provides bootstrap-aggregated regression forests for Go,
// built for tabular feature data such as rolling sports statistics.
//
// Grove trains ensembles of variance-reducing regression trees on named
// feature maps, tunes hyperparameters with an exhaustive grid search over a
// chronological holdout split, and reports R², RMSE and MAE for every
// candidate.
//
// # Features
//
// - Deterministic: a fixed seed reproduces every tree regardless of CPU count
// - CPU-parallel: trees and tuning trials train concurrently
// - Named features: samples are feature maps validated against a schema
// - Portable models: fitted forests round-trip through a JSON format
//
// # Installation
//
// Install grove using go get:
//
//	go get github.com/courtsideml/grove
//
// # Quick Start
//
// Train a forest on named feature vectors:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/courtsideml/grove/forest"
//	)
//
//	func main() {
//	    ds := forest.Dataset{
//	        {Features: map[string]float64{"pts": 21, "min": 34}, Target: 19.5},
//	        {Features: map[string]float64{"pts": 25, "min": 36}, Target: 23.0},
//	        // ...
//	    }
//
//	    model := forest.NewForestRegressor().
//	        WithNumTrees(200).
//	        WithRandomState(7)
//	    if err := model.Fit(ds); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    preds, err := model.Predict([]map[string]float64{
//	        {"pts": 23, "min": 35},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Prediction:", preds[0])
//	}
//
// # Packages
//
// The library is organized into several packages:
//
//   - forest: Regression trees, the forest ensemble, schemas and persistence
//   - tuning: Grid search over forest hyperparameters
//   - metrics: Evaluation metrics (MSE, RMSE, MAE, R²)
//   - core/model: Fitted-state tracking and gob persistence
//   - core/parallel: Parallel processing utilities
//   - pkg/errors: Structured errors, warnings and panic recovery
//   - pkg/log: Structured logging backed by zerolog
//
// # Hyperparameter Tuning
//
// The tuning package scores every grid configuration on the same
// chronological split and ranks candidates by held-out R²:
//
//	result, err := tuning.NewTuner().
//	    WithSeed(7).
//	    Tune(ctx, ds, tuning.ParamGrid{
//	        NumTrees:         []int{100, 300},
//	        MaxDepths:        []int{8, 15},
//	        MinSamplesSplits: []int{2, 10},
//	        MinSamplesLeafs:  []int{1, 4},
//	        MaxFeatures:      []forest.MaxFeaturesStrategy{forest.MaxFeaturesSqrt},
//	    })
//
// # License
//
// Grove is released under the MIT License.
package grove
