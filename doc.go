// Package estimo estimates property prices with a hybrid of a random forest
// and a distance-weighted k-nearest-neighbors regressor.
//
// All learning algorithms are implemented in this module on top of gonum
// matrices; no external learning library is used.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/propval/estimo/dataset"
//	    "github.com/propval/estimo/session"
//	)
//
//	func main() {
//	    ds, err := dataset.LoadCSVFile("houses.csv", "Price")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    s, err := session.New(session.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    report, err := s.Train(context.Background(), ds.X, ds.Y)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, r := range report.Results {
//	        fmt.Printf("%-25s MAE %.2f accuracy %.2f%%\n", r.Name, r.MAE, r.Accuracy)
//	    }
//
//	    p, err := s.Predict([]float64{85, 3, 2})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("estimated price:", p.Hybrid)
//	}
//
// # Packages
//
//   - sklearn/tree: CART regression tree (arena of nodes, exhaustive midpoint split search)
//   - sklearn/ensemble: bootstrap random forest and the 0.7·RF + 0.3·KNN blend
//   - sklearn/neighbors: distance-weighted KNN regressor on min-max normalized features
//   - model_selection: ordered train/test split, k-fold cross-validation
//   - metrics: MAE, MAPE, MSE, RMSE, R², accuracy (100 - MAPE)
//   - preprocessing: MinMaxScaler
//   - session: trained model pair with train / evaluate / predict / save / load
//   - dataset: numeric CSV loader
//   - report: result tables and predicted-vs-actual plots
//   - server: HTTP prediction endpoint
//   - core/model: estimator interfaces, fitted state, binary and JSON model schema
//   - core/parallel: worker pools
//   - pkg/errors, pkg/log: structured errors and logging
//
// # Reproducibility
//
// The tree has no randomness. The forest draws every tree's bootstrap sample
// from its own PCG stream seeded with (random_state, tree index), so a fixed
// random_state gives the same forest for any number of workers. Saved models
// reload bit-identically.
package estimo
