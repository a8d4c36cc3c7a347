package model_selection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/pkg/errors"
)

// Fold holds the train and test row indices of one split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits contiguous blocks of n/NSplits rows.
//
// Rows past the last full block belong to no block: they are never held out
// and never trained on. Training indices keep the original row order.
type KFold struct {
	NSplits int
}

// NewKFold creates a k-fold splitter. nSplits must be at least 2.
func NewKFold(nSplits int) (*KFold, error) {
	if nSplits < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", nSplits)
	}
	return &KFold{NSplits: nSplits}, nil
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. Every fold has
// n/NSplits test rows, which must be at least one.
func (kf *KFold) Split(X mat.Matrix) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", kf.NSplits)
	}
	if X == nil {
		return nil, errors.NewModelError("KFold.Split", "empty data", errors.ErrEmptyData)
	}
	nSamples, _ := X.Dims()
	foldSize := nSamples / kf.NSplits
	if foldSize == 0 {
		return nil, errors.NewValueError("KFold.Split",
			"fewer samples than folds")
	}
	used := foldSize * kf.NSplits

	folds := make([]Fold, kf.NSplits)
	for i := range folds {
		start, end := i*foldSize, (i+1)*foldSize

		test := make([]int, 0, foldSize)
		train := make([]int, 0, used-foldSize)
		for j := 0; j < used; j++ {
			if j >= start && j < end {
				test = append(test, j)
			} else {
				train = append(train, j)
			}
		}
		folds[i] = Fold{TrainIndices: train, TestIndices: test}
	}
	return folds, nil
}
