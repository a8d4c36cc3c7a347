// Package session owns a fitted random forest and KNN regressor pair and
// exposes the train / evaluate / predict / persist workflow around them.
//
// A Session replaces process-wide model globals: callers construct one,
// train or load it, and share it. Predict may be called concurrently; Train
// and Load swap the models in atomically once they succeed.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/metrics"
	"github.com/propval/estimo/model_selection"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/sklearn/ensemble"
	"github.com/propval/estimo/sklearn/neighbors"
)

// Algorithm names used in evaluation reports.
const (
	AlgorithmRandomForest = "Random Forest"
	AlgorithmKNN          = "k-Nearest Neighbors"
	AlgorithmCART         = "CART (Decision Tree)"
	AlgorithmHybrid       = "FINAL HYBRID ENSEMBLE"
)

// Prediction holds the per-model outputs for one sample.
type Prediction struct {
	RandomForest float64 `json:"random_forest"`
	KNN          float64 `json:"knn"`
	Hybrid       float64 `json:"hybrid"`
}

// Session owns the trained forest and KNN models.
type Session struct {
	cfg    Config
	logger log.Logger

	mu       sync.RWMutex
	forest   *ensemble.RandomForestRegressor
	knn      *neighbors.KNeighborsRegressor
	version  string
	features []string
	trained  time.Time
}

// New validates cfg and returns an untrained session.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:    cfg,
		logger: log.GetLoggerWithName("session"),
	}, nil
}

// Config returns the session settings.
func (s *Session) Config() Config { return s.cfg }

// IsTrained reports whether models are loaded.
func (s *Session) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest != nil
}

// Version identifies the trained models ("model-<uuid>"); empty before
// training.
func (s *Session) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// FeatureNames returns the feature names recorded with the models, if any.
func (s *Session) FeatureNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features
}

// SetFeatureNames records the column names persisted by Save.
func (s *Session) SetFeatureNames(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = append([]string(nil), names...)
}

// NFeatures returns the feature count the models were fitted on, or 0.
func (s *Session) NFeatures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.forest == nil {
		return 0
	}
	return s.forest.NFeatures()
}

// Train splits X, y with Config.TestSize, fits the forest and KNN on the
// leading partition, and evaluates every algorithm on the held-out rows.
func (s *Session) Train(ctx context.Context, X, y mat.Matrix) (*EvaluationReport, error) {
	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y, s.cfg.TestSize)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hybrid := ensemble.NewHybridRegressor(s.cfg.NewForest(), s.cfg.NewKNN(), s.cfg.Blender())
	if err := hybrid.FitContext(ctx, XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "training failed")
	}

	s.mu.Lock()
	s.forest = hybrid.Forest
	s.knn = hybrid.KNN
	s.version = newVersion()
	s.trained = time.Now()
	version := s.version
	s.mu.Unlock()

	rows, _ := XTrain.Dims()
	s.logger.Info("Models trained",
		log.OperationKey, log.OperationFit,
		log.TrainSamplesKey, rows,
		log.TreesKey, s.cfg.NTrees,
		log.NeighborsKey, s.cfg.K,
		"model.version", version,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return s.evaluate(ctx, hybrid, XTrain, yTrain, XTest, yTest)
}

// Evaluate re-runs the held-out evaluation of the current models on X, y:
// the same split as Train is taken, the stored models predict the held-out
// rows, and a fresh CART tree is fitted on the leading partition.
func (s *Session) Evaluate(ctx context.Context, X, y mat.Matrix) (*EvaluationReport, error) {
	hybrid, err := s.models("Evaluate")
	if err != nil {
		return nil, err
	}
	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y, s.cfg.TestSize)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, hybrid, XTrain, yTrain, XTest, yTest)
}

func (s *Session) evaluate(ctx context.Context, hybrid *ensemble.HybridRegressor, XTrain, yTrain, XTest, yTest *mat.Dense) (*EvaluationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pRF, err := hybrid.Forest.Predict(XTest)
	if err != nil {
		return nil, err
	}
	pKNN, err := hybrid.KNN.Predict(XTest)
	if err != nil {
		return nil, err
	}
	pHybrid, err := hybrid.Blender.BlendVec(pRF, pKNN)
	if err != nil {
		return nil, err
	}

	cart := s.cfg.NewCART()
	if err := cart.Fit(XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "reference tree")
	}
	pCART, err := cart.Predict(XTest)
	if err != nil {
		return nil, err
	}

	trainRows, _ := XTrain.Dims()
	testRows, _ := XTest.Dims()
	report := &EvaluationReport{
		RunID:        uuid.NewString(),
		ModelVersion: s.Version(),
		TrainSamples: trainRows,
		TestSamples:  testRows,
		YTrue:        mat.Col(nil, 0, yTest),
		Predictions:  make(map[string][]float64, 4),
	}

	for _, p := range []struct {
		name string
		pred mat.Matrix
	}{
		{AlgorithmRandomForest, pRF},
		{AlgorithmKNN, pKNN},
		{AlgorithmCART, pCART},
		{AlgorithmHybrid, pHybrid},
	} {
		mae, mape, err := metrics.CalculateMetrics(yTest, p.pred)
		if err != nil {
			return nil, errors.Wrapf(err, "%s metrics", p.name)
		}
		report.Results = append(report.Results, AlgorithmResult{
			Name:     p.name,
			MAE:      mae,
			MAPE:     mape,
			Accuracy: 100 - mape,
		})
		report.Predictions[p.name] = mat.Col(nil, 0, p.pred)

		s.logger.Debug("Algorithm evaluated",
			log.ModelNameKey, p.name,
			log.PhaseKey, log.PhaseValidation,
			log.MAEKey, mae,
			log.MAPEKey, mape,
			log.AccuracyKey, 100-mape,
		)
	}
	return report, nil
}

// Predict returns the forest, KNN and blended predictions for one sample.
func (s *Session) Predict(features []float64) (Prediction, error) {
	hybrid, err := s.models("Predict")
	if err != nil {
		return Prediction{}, err
	}
	rf, err := hybrid.Forest.PredictOne(features)
	if err != nil {
		return Prediction{}, err
	}
	knn, err := hybrid.KNN.PredictOne(features)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{RandomForest: rf, KNN: knn, Hybrid: hybrid.Blender.Blend(rf, knn)}, nil
}

// PredictBatch returns the blended predictions for every row of X.
func (s *Session) PredictBatch(X mat.Matrix) (mat.Matrix, error) {
	hybrid, err := s.models("PredictBatch")
	if err != nil {
		return nil, err
	}
	return hybrid.Predict(X)
}

// CrossValidate runs k-fold cross-validation (Config.Folds) of a fresh
// hybrid model on X, y. It does not touch the session's models.
func (s *Session) CrossValidate(ctx context.Context, X, y mat.Matrix) (*model_selection.CVResult, error) {
	return model_selection.CrossValidate(ctx, s.HybridFactory(), X, y, s.cfg.Folds, model_selection.WithWorkers(s.cfg.NJobs))
}

// HybridFactory returns an estimator factory for unfitted hybrid models
// built from the session config.
func (s *Session) HybridFactory() model_selection.EstimatorFactory {
	return func() model.Estimator {
		return ensemble.NewHybridRegressor(s.cfg.NewForest(), s.cfg.NewKNN(), s.cfg.Blender())
	}
}

func newVersion() string {
	return fmt.Sprintf("model-%s", uuid.New().String())
}

// models returns a snapshot of the fitted pair.
func (s *Session) models(method string) (*ensemble.HybridRegressor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.forest == nil || s.knn == nil {
		return nil, errors.NewNotFittedError("Session", method)
	}
	return ensemble.NewHybridRegressor(s.forest, s.knn, s.cfg.Blender()), nil
}
