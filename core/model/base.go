package model

import (
	"sync"

	"github.com/propval/estimo/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルに埋め込まれる学習状態の管理構造体
//
// 学習時に見た特徴量数も保持し、予測時の次元チェックに使う。
// 状態はミューテックスで保護されるため、学習済みモデルへの並行 Predict は安全。
type BaseEstimator struct {
	mu        sync.RWMutex
	state     EstimatorState
	nFeatures int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、特徴量数を記録する
func (e *BaseEstimator) SetFitted(nFeatures int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Fitted
	e.nFeatures = nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NotFitted
	e.nFeatures = 0
}

// NFeatures は学習時の特徴量数を返す（未学習なら 0）
func (e *BaseEstimator) NFeatures() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nFeatures
}

// RequireFitted は未学習なら NotFittedError を、
// 特徴量数が学習時と異なれば DimensionError を返す。nFeatures < 0 なら次元は検査しない。
func (e *BaseEstimator) RequireFitted(modelName, method string, nFeatures int) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != Fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	if nFeatures >= 0 && nFeatures != e.nFeatures {
		return errors.NewDimensionError(modelName+"."+method, e.nFeatures, nFeatures, 1)
	}
	return nil
}
