package model_selection

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/core/parallel"
	"github.com/propval/estimo/metrics"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
)

// EstimatorFactory returns a fresh, unfitted estimator. It is called once
// per fold, possibly from several goroutines at once.
type EstimatorFactory func() model.Estimator

// contextFitter is implemented by estimators whose Fit can be cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// CVResult stores cross-validation results by fold index
type CVResult struct {
	// TestScores は各 fold の 100 - MAPE
	TestScores []float64
	TrainSizes []int
	TestSizes  []int
	// FitTimes は各 fold の学習時間（ミリ秒）
	FitTimes []float64
}

// MeanScore returns the mean test score
func (cv *CVResult) MeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return 0.0
	}
	return metrics.Mean(cv.TestScores)
}

// StdScore returns the sample standard deviation of the test scores
func (cv *CVResult) StdScore() float64 {
	if len(cv.TestScores) <= 1 {
		return 0.0
	}

	mean := cv.MeanScore()
	sumSq := 0.0
	for _, score := range cv.TestScores {
		diff := score - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(cv.TestScores)-1))
}

// BestFold returns the index of the highest-scoring fold (earliest on ties).
func (cv *CVResult) BestFold() int {
	best := 0
	for i, s := range cv.TestScores {
		if s > cv.TestScores[best] {
			best = i
		}
	}
	return best
}

// CVOption configures CrossValidate.
type CVOption func(*cvConfig)

type cvConfig struct {
	workers int
}

// WithWorkers bounds the number of folds evaluated concurrently. <= 0 uses
// all CPUs; 1 runs the folds sequentially.
func WithWorkers(n int) CVOption {
	return func(c *cvConfig) { c.workers = n }
}

// CrossValidate は KFold で分割し、fold ごとに新しい推定器を学習・評価する。
//
// 各 fold のスコアは 100 - MAPE（真値 0 は MAPEEpsilon で置き換え）。
// fold は並行に実行されることがあるが、結果は fold の番号順に格納される。
// ctx がキャンセルされると未実行の fold は開始されない。
func CrossValidate(ctx context.Context, factory EstimatorFactory, X, y mat.Matrix, folds int, opts ...CVOption) (*CVResult, error) {
	if factory == nil {
		return nil, errors.NewValueError("CrossValidate", "nil estimator factory")
	}
	cfg := cvConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	rows, cols, err := model.ValidateFitInput("CrossValidate", X, y)
	if err != nil {
		return nil, err
	}
	kf, err := NewKFold(folds)
	if err != nil {
		return nil, err
	}
	splits, err := kf.Split(X)
	if err != nil {
		return nil, err
	}

	nFolds := len(splits)
	result := &CVResult{
		TestScores: make([]float64, nFolds),
		TrainSizes: make([]int, nFolds),
		TestSizes:  make([]int, nFolds),
		FitTimes:   make([]float64, nFolds),
	}

	logger := log.GetLoggerWithName("model_selection")
	logger.Debug("Cross-validation started",
		log.OperationKey, log.OperationCrossValidate,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)

	err = parallel.ForEach(ctx, nFolds, cfg.workers, func(ctx context.Context, idx int) error {
		fold := splits[idx]
		trainX, trainY := extractSubset(X, y, fold.TrainIndices)
		testX, testY := extractSubset(X, y, fold.TestIndices)

		est := factory()
		if est == nil {
			return errors.NewValueError("CrossValidate", "estimator factory returned nil")
		}

		start := time.Now()
		var err error
		if cf, ok := est.(contextFitter); ok {
			err = cf.FitContext(ctx, trainX, trainY)
		} else {
			err = est.Fit(trainX, trainY)
		}
		if err != nil {
			return errors.Wrapf(err, "fold %d training failed", idx)
		}
		result.FitTimes[idx] = float64(time.Since(start).Microseconds()) / 1000

		pred, err := est.Predict(testX)
		if err != nil {
			return errors.Wrapf(err, "fold %d prediction failed", idx)
		}
		mape, err := metrics.MAPEMatrix(testY, pred)
		if err != nil {
			return errors.Wrapf(err, "fold %d scoring failed", idx)
		}

		result.TestScores[idx] = 100 - mape
		result.TrainSizes[idx] = len(fold.TrainIndices)
		result.TestSizes[idx] = len(fold.TestIndices)

		logger.Debug("Fold evaluated",
			log.FoldKey, idx,
			log.TrainSamplesKey, len(fold.TrainIndices),
			log.TestSamplesKey, len(fold.TestIndices),
			log.AccuracyKey, result.TestScores[idx],
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Cross-validation finished",
		log.OperationKey, log.OperationCrossValidate,
		log.AccuracyKey, result.MeanScore(),
	)
	return result, nil
}
