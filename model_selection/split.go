// Package model_selection はデータ分割と交差検証を提供する。
//
// 分割はすべて決定的で、行の順序を変えない。事前にシャッフルしたい場合は
// 呼び出し側で行う（dataset.Dataset.Shuffle を参照）。
package model_selection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
)

// TrainTestSplit は先頭 int(n·(1-testSize)) 行を学習用、残りを検証用に分割する
//
// testSize は (0, 1) の範囲で、両側に少なくとも1行が残らなければならない。
func TrainTestSplit(X, y mat.Matrix, testSize float64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n, _, err := model.ValidateFitInput("TrainTestSplit", X, y)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	split := int(float64(n) * (1 - testSize))
	if split == 0 || split == n {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit",
			"test_size leaves an empty partition")
	}

	XTrain, yTrain = extractRange(X, y, 0, split)
	XTest, yTest = extractRange(X, y, split, n)
	return XTrain, XTest, yTrain, yTest, nil
}

// extractRange copies rows [start, end).
func extractRange(X, y mat.Matrix, start, end int) (*mat.Dense, *mat.Dense) {
	idx := make([]int, end-start)
	for i := range idx {
		idx[i] = start + i
	}
	return extractSubset(X, y, idx)
}

// extractSubset copies the given rows in the given order.
func extractSubset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, cols := X.Dims()
	xs := mat.NewDense(len(indices), cols, nil)
	ys := mat.NewDense(len(indices), 1, nil)
	row := make([]float64, cols)
	for i, idx := range indices {
		for j := range row {
			row[j] = X.At(idx, j)
		}
		xs.SetRow(i, row)
		ys.Set(i, 0, y.At(idx, 0))
	}
	return xs, ys
}
