// Package streamforecast provides an offline pipeline for predicting the
// stream count of a catalog track from its static numeric attributes
// (chart presence, playlist inclusion counts, audio characteristics and
// time since release), and for comparing competing regression models on
// that task.
//
// The pipeline is a sequence of pure stages: record cleaning, feature
// derivation, isolation-forest outlier filtering, standardization, and a
// multi-model training/evaluation harness producing cross-validated error
// metrics that are directly comparable across structurally different
// learners.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/streamforecast/dataset"
//	    "github.com/YuminosukeSato/streamforecast/pipeline"
//	)
//
//	func main() {
//	    records := loadRecords() // parsed rows from an external collaborator
//	    cmp, err := pipeline.Run(pipeline.DefaultConfig(), dataset.New(records))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, m := range cmp.Models {
//	        fmt.Printf("%s: cv rmse %.2f\n", m.Name, -m.CVMean)
//	    }
//	}
//
// # Packages
//
//   - dataset: records, cleaning, feature derivation, matrix projection
//   - anomaly: isolation-forest outlier detection
//   - preprocessing: standardization
//   - linear, neural, boosting: the three model variants
//   - modelselection: k-fold cross-validation and grid search
//   - metrics: regression error metrics (MSE, RMSE, MAE, R²)
//   - pipeline: stage orchestration and model comparison
//   - core/model, core/parallel: shared estimator state and parallel helpers
//   - pkg/errors, pkg/log: structured errors and logging
//
// All numeric data flows through gonum matrices; every source of
// randomness (forest sampling, fold shuffling, network initialization) is
// seeded explicitly so a pipeline run is reproducible.
package streamforecast
