package ensemble

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/core/parallel"
	"github.com/propval/estimo/metrics"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/sklearn/neighbors"
)

// HybridBlender linearly combines forest and KNN predictions with fixed weights.
type HybridBlender struct {
	RFWeight  float64 `json:"rf_weight"`
	KNNWeight float64 `json:"knn_weight"`
}

// DefaultHybridBlender returns the 0.7·RF + 0.3·KNN blend.
func DefaultHybridBlender() HybridBlender {
	return HybridBlender{RFWeight: 0.7, KNNWeight: 0.3}
}

// NewHybridBlender validates the weights. Weights need not sum to 1.
func NewHybridBlender(rfWeight, knnWeight float64) (HybridBlender, error) {
	b := HybridBlender{RFWeight: rfWeight, KNNWeight: knnWeight}
	return b, b.Validate()
}

// Validate checks that both weights are finite and non-negative.
func (b HybridBlender) Validate() error {
	if !validWeight(b.RFWeight) {
		return errors.NewValidationError("rf_weight", "must be a finite non-negative number", b.RFWeight)
	}
	if !validWeight(b.KNNWeight) {
		return errors.NewValidationError("knn_weight", "must be a finite non-negative number", b.KNNWeight)
	}
	return nil
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

// Blend combines one pair of predictions.
func (b HybridBlender) Blend(pRF, pKNN float64) float64 {
	return b.RFWeight*pRF + b.KNNWeight*pKNN
}

// BlendVec combines two n×1 prediction matrices element-wise.
func (b HybridBlender) BlendVec(pRF, pKNN mat.Matrix) (mat.Matrix, error) {
	rf, err := metrics.ColumnVector("HybridBlender.BlendVec", pRF)
	if err != nil {
		return nil, err
	}
	knn, err := metrics.ColumnVector("HybridBlender.BlendVec", pKNN)
	if err != nil {
		return nil, err
	}
	if rf.Len() != knn.Len() {
		return nil, errors.NewDimensionError("HybridBlender.BlendVec", rf.Len(), knn.Len(), 0)
	}
	out := mat.NewVecDense(rf.Len(), nil)
	for i := 0; i < rf.Len(); i++ {
		out.SetVec(i, b.Blend(rf.AtVec(i), knn.AtVec(i)))
	}
	return out, nil
}

// HybridRegressor fits a forest and a KNN regressor on the same data and
// predicts their blend. It satisfies model.Estimator so it can be
// cross-validated like any single model.
type HybridRegressor struct {
	Forest  *RandomForestRegressor
	KNN     *neighbors.KNeighborsRegressor
	Blender HybridBlender
}

// NewHybridRegressor wires the two models with a blender.
func NewHybridRegressor(forest *RandomForestRegressor, knn *neighbors.KNeighborsRegressor, blender HybridBlender) *HybridRegressor {
	return &HybridRegressor{Forest: forest, KNN: knn, Blender: blender}
}

// Fit fits both models concurrently.
func (h *HybridRegressor) Fit(X, y mat.Matrix) error {
	return h.FitContext(context.Background(), X, y)
}

// FitContext fits both models concurrently; the forest honours ctx. Fresh
// models with the current hyperparameters are fitted and installed only when
// both succeed, so a failed fit leaves Forest and KNN untouched.
func (h *HybridRegressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := h.Blender.Validate(); err != nil {
		return err
	}
	forest := NewRandomForestRegressor()
	if err := forest.SetParams(h.Forest.GetParams()); err != nil {
		return err
	}
	knn := neighbors.NewKNeighborsRegressor()
	if err := knn.SetParams(h.KNN.GetParams()); err != nil {
		return err
	}

	err := parallel.ForEach(ctx, 2, 2, func(ctx context.Context, i int) error {
		if i == 0 {
			return forest.FitContext(ctx, X, y)
		}
		return knn.Fit(X, y)
	})
	if err != nil {
		return err
	}
	h.Forest, h.KNN = forest, knn
	return nil
}

// Predict returns the blended predictions.
func (h *HybridRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	pRF, err := h.Forest.Predict(X)
	if err != nil {
		return nil, err
	}
	pKNN, err := h.KNN.Predict(X)
	if err != nil {
		return nil, err
	}
	return h.Blender.BlendVec(pRF, pKNN)
}

// PredictOne returns the blended prediction for one sample.
func (h *HybridRegressor) PredictOne(x []float64) (float64, error) {
	pRF, err := h.Forest.PredictOne(x)
	if err != nil {
		return 0, err
	}
	pKNN, err := h.KNN.PredictOne(x)
	if err != nil {
		return 0, err
	}
	return h.Blender.Blend(pRF, pKNN), nil
}

// Score returns the coefficient of determination R² of the blend.
func (h *HybridRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := h.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

var (
	_ model.Regressor      = (*RandomForestRegressor)(nil)
	_ model.Regressor      = (*HybridRegressor)(nil)
	_ model.BinaryModel    = (*RandomForestRegressor)(nil)
	_ model.WeightExporter = (*RandomForestRegressor)(nil)
)
