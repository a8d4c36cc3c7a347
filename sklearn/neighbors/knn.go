// Package neighbors implements a distance-weighted k-nearest-neighbors
// regressor over min-max normalized features.
package neighbors

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/core/parallel"
	"github.com/propval/estimo/metrics"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/preprocessing"
)

const modelName = "KNeighborsRegressor"

// KNeighborsRegressor predicts the inverse-distance weighted mean of the k
// nearest training targets in a normalized feature space.
//
// Fit records each feature's min and max; training rows and queries are both
// scaled to [0,1] with those bounds. A zero-range feature always maps to 0.
type KNeighborsRegressor struct {
	model.BaseEstimator

	nNeighbors int
	epsilon    float64
	nJobs      int

	scaler *preprocessing.MinMaxScaler
	xTrain *mat.Dense // normalized
	yTrain []float64
}

// Option configures a KNeighborsRegressor.
type Option func(*KNeighborsRegressor)

// WithNNeighbors sets k. When k exceeds the number of training rows all rows
// are used.
func WithNNeighbors(k int) Option {
	return func(r *KNeighborsRegressor) {
		r.nNeighbors = k
	}
}

// WithEpsilon sets the term added to each distance before inversion.
func WithEpsilon(eps float64) Option {
	return func(r *KNeighborsRegressor) {
		r.epsilon = eps
	}
}

// WithNJobs sets the number of goroutines used to answer a batch of queries.
// 1 (the default) is sequential; <= 0 uses all CPUs.
func WithNJobs(n int) Option {
	return func(r *KNeighborsRegressor) {
		r.nJobs = n
	}
}

// NewKNeighborsRegressor creates a regressor with k=5 and epsilon=1e-5 unless
// overridden.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	r := &KNeighborsRegressor{
		nNeighbors: 5,
		epsilon:    1e-5,
		nJobs:      1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func validateParams(k int, eps float64) error {
	if k < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", k)
	}
	if !(eps > 0) {
		return errors.NewValidationError("epsilon", "must be > 0", eps)
	}
	return nil
}

// Fit stores the normalized training matrix, the targets and the per-feature
// bounds.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KNeighborsRegressor.Fit")

	if err := validateParams(r.nNeighbors, r.epsilon); err != nil {
		return err
	}
	rows, cols, err := model.ValidateFitInput("KNeighborsRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	scaler := preprocessing.NewMinMaxScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}

	r.scaler = scaler
	r.xTrain = scaled.(*mat.Dense)
	r.yTrain = model.Column(y)
	r.SetFitted(cols)

	log.GetLoggerWithName("neighbors").Debug("knn fitted",
		log.ModelNameKey, modelName,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.NeighborsKey, r.nNeighbors,
	)
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "KNeighborsRegressor.Predict")

	rows, cols, err := model.ValidatePredictInput("KNeighborsRegressor.Predict", X)
	if err != nil {
		return nil, err
	}
	if err := r.RequireFitted(modelName, "Predict", cols); err != nil {
		return nil, err
	}

	start := time.Now()
	out := make([]float64, rows)
	work := func(s, e int) {
		q := newQuery(r.xTrain.RawMatrix().Rows, cols)
		for i := s; i < e; i++ {
			mat.Row(q.raw, i, X)
			out[i] = r.predictNormalized(q)
		}
	}
	if r.nJobs == 1 || rows == 1 {
		work(0, rows)
	} else {
		parallel.ParallelizeN(rows, r.nJobs, work)
	}

	log.GetLoggerWithName("neighbors").Debug("knn predicted",
		log.ModelNameKey, modelName,
		log.PredsKey, rows,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return mat.NewVecDense(rows, out), nil
}

// PredictOne predicts a single sample given in original (unnormalized) units.
func (r *KNeighborsRegressor) PredictOne(x []float64) (float64, error) {
	if err := r.RequireFitted(modelName, "PredictOne", len(x)); err != nil {
		return 0, err
	}
	if err := errors.CheckNumericalStability("KNeighborsRegressor.PredictOne", x, 0); err != nil {
		return 0, err
	}
	q := newQuery(r.xTrain.RawMatrix().Rows, len(x))
	copy(q.raw, x)
	return r.predictNormalized(q), nil
}

// query holds per-goroutine buffers.
type query struct {
	raw   []float64
	norm  []float64
	row   []float64
	order []int
	dist  []float64
}

func newQuery(nTrain, nFeatures int) *query {
	return &query{
		raw:   make([]float64, nFeatures),
		norm:  make([]float64, nFeatures),
		row:   make([]float64, nFeatures),
		order: make([]int, nTrain),
		dist:  make([]float64, nTrain),
	}
}

func (r *KNeighborsRegressor) predictNormalized(q *query) float64 {
	// dimensions were checked by the caller
	if _, err := r.scaler.TransformRow(q.norm, q.raw); err != nil {
		panic(err)
	}

	n := len(r.yTrain)
	for i := 0; i < n; i++ {
		q.dist[i] = floats.Distance(q.norm, r.xTrain.RawRowView(i), 2)
		q.order[i] = i
	}
	// ties keep training order
	slices.SortStableFunc(q.order, func(a, b int) int {
		return cmp.Compare(q.dist[a], q.dist[b])
	})

	k := min(r.nNeighbors, n)
	var num, den float64
	for _, i := range q.order[:k] {
		w := 1 / (q.dist[i] + r.epsilon)
		num += w * r.yTrain[i]
		den += w
	}
	return num / den
}

// Score returns the coefficient of determination R² on (X, y).
func (r *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// NNeighbors returns k.
func (r *KNeighborsRegressor) NNeighbors() int { return r.nNeighbors }

// Bounds returns copies of the per-feature training minimum and maximum.
func (r *KNeighborsRegressor) Bounds() (dataMin, dataMax []float64) {
	if r.scaler == nil {
		return nil, nil
	}
	return slices.Clone(r.scaler.DataMin), slices.Clone(r.scaler.DataMax)
}

// GetParams returns the hyperparameters.
func (r *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": r.nNeighbors,
		"epsilon":     r.epsilon,
		"n_jobs":      r.nJobs,
	}
}

// SetParams updates hyperparameters. It does not refit.
func (r *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	k, eps, jobs := r.nNeighbors, r.epsilon, r.nJobs
	if err := model.IntParam(params, "n_neighbors", &k); err != nil {
		return err
	}
	if err := model.FloatParam(params, "epsilon", &eps); err != nil {
		return err
	}
	if err := model.IntParam(params, "n_jobs", &jobs); err != nil {
		return err
	}
	if err := validateParams(k, eps); err != nil {
		return err
	}
	r.nNeighbors, r.epsilon, r.nJobs = k, eps, jobs
	return nil
}

// String returns a short description.
func (r *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, epsilon=%g)", r.nNeighbors, r.epsilon)
}
