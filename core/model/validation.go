package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/pkg/errors"
)

// ValidateFitInput は学習データの形状と値を検証し、行数と特徴量数を返す。
//
//   - 空の X は ModelError{Err: ErrEmptyData}
//   - y が列ベクトルでない、または行数が X と異なれば DimensionError
//   - NaN / Inf を含めば NumericalInstabilityError
func ValidateFitInput(op string, X, y mat.Matrix) (rows, cols int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op, y); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// ValidatePredictInput は予測データを検証し、行数と特徴量数を返す
func ValidatePredictInput(op string, X mat.Matrix) (rows, cols int, err error) {
	if X == nil {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// Column は n×1 行列 y を新しいスライスにコピーする
func Column(y mat.Matrix) []float64 {
	r, _ := y.Dims()
	out := make([]float64, r)
	mat.Col(out, 0, y)
	return out
}
