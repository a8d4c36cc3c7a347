// Package ensemble implements the bootstrap random forest regressor and the
// weighted blend of forest and nearest-neighbor predictions.
package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/core/parallel"
	"github.com/propval/estimo/metrics"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/sklearn/tree"
)

const forestName = "RandomForestRegressor"

// RandomForestRegressor averages CART trees fitted on bootstrap resamples.
//
// Every tree draws its resample from its own PCG stream seeded with
// (random_state, tree index), so a fit with a fixed random_state is
// reproducible regardless of how many workers build the trees. Trees are
// stored in index order.
type RandomForestRegressor struct {
	model.BaseEstimator

	nTrees          int
	maxDepth        int
	minSamplesSplit int
	randomState     int64 // < 0: seeded from the runtime source on each Fit
	bootstrap       bool
	nJobs           int

	trees []*tree.DecisionTreeRegressor
	seed  uint64 // seed actually used by the last Fit
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNTrees sets the number of trees.
func WithNTrees(n int) Option {
	return func(f *RandomForestRegressor) { f.nTrees = n }
}

// WithMaxDepth sets max_depth for every tree.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) { f.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split for every tree.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) { f.minSamplesSplit = n }
}

// WithRandomState fixes the seed of the bootstrap streams. A negative seed
// draws a fresh one on each Fit.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) { f.randomState = seed }
}

// WithBootstrap toggles resampling. Without it every tree is fitted on the
// full training set, and the trees are identical.
func WithBootstrap(on bool) Option {
	return func(f *RandomForestRegressor) { f.bootstrap = on }
}

// WithNJobs bounds the number of trees built concurrently. <= 0 uses all
// CPUs.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) { f.nJobs = n }
}

// NewRandomForestRegressor creates a forest of 10 trees with max_depth 7 and
// min_samples_split 5 unless overridden.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		nTrees:          10,
		maxDepth:        7,
		minSamplesSplit: 5,
		randomState:     -1,
		bootstrap:       true,
		nJobs:           0,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func validateForestParams(nTrees, maxDepth, minSamplesSplit int) error {
	if nTrees < 1 {
		return errors.NewValidationError("n_trees", "must be >= 1", nTrees)
	}
	if maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", maxDepth)
	}
	if minSamplesSplit < 1 {
		return errors.NewValidationError("min_samples_split", "must be >= 1", minSamplesSplit)
	}
	return nil
}

// Fit fits the forest. It is FitContext with context.Background().
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext fits all trees on a bounded worker pool. Cancelling ctx stops
// scheduling further trees and returns ctx's error; the previously fitted
// forest, if any, is kept.
func (f *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := validateForestParams(f.nTrees, f.maxDepth, f.minSamplesSplit); err != nil {
		return err
	}
	rows, cols, err := model.ValidateFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	seed := uint64(f.randomState)
	if f.randomState < 0 {
		seed = rand.Uint64()
	}

	start := time.Now()
	columns := tree.Columns(X)
	targets := model.Column(y)
	trees := make([]*tree.DecisionTreeRegressor, f.nTrees)

	err = parallel.ForEach(ctx, f.nTrees, f.nJobs, func(_ context.Context, i int) error {
		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesSplit(f.minSamplesSplit),
		)
		if err := t.FitIndices(columns, targets, f.sample(seed, i, rows)); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	f.trees = trees
	f.seed = seed
	f.SetFitted(cols)

	log.GetLoggerWithName("ensemble").Debug("forest fitted",
		log.ModelNameKey, forestName,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TreesKey, f.nTrees,
		log.WorkersKey, parallel.Workers(f.nJobs, f.nTrees),
		log.RandomSeedKey, seed,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// sample returns the row indices tree i is fitted on.
func (f *RandomForestRegressor) sample(seed uint64, i, n int) []int {
	idx := make([]int, n)
	if !f.bootstrap {
		for k := range idx {
			idx[k] = k
		}
		return idx
	}
	rng := rand.New(rand.NewPCG(seed, uint64(i)))
	for k := range idx {
		idx[k] = rng.IntN(n)
	}
	return idx
}

// Predict returns the unweighted mean of all tree predictions.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Predict")

	rows, cols, err := model.ValidatePredictInput("RandomForestRegressor.Predict", X)
	if err != nil {
		return nil, err
	}
	if err := f.RequireFitted(forestName, "Predict", cols); err != nil {
		return nil, err
	}

	perTree := make([][]float64, len(f.trees))
	for t, tr := range f.trees {
		p, err := tr.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", t)
		}
		perTree[t] = model.Column(p)
	}

	// sum in tree order so the result does not depend on scheduling
	out := make([]float64, rows)
	for _, p := range perTree {
		floats.Add(out, p)
	}
	for i := range out {
		out[i] /= float64(len(f.trees))
	}
	return mat.NewVecDense(rows, out), nil
}

// PredictOne predicts a single sample.
func (f *RandomForestRegressor) PredictOne(x []float64) (float64, error) {
	if err := f.RequireFitted(forestName, "PredictOne", len(x)); err != nil {
		return 0, err
	}
	var sum float64
	for _, t := range f.trees {
		p, err := t.PredictOne(x)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(f.trees)), nil
}

// Score returns the coefficient of determination R² on (X, y).
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Trees returns the fitted trees in index order.
func (f *RandomForestRegressor) Trees() []*tree.DecisionTreeRegressor {
	return append([]*tree.DecisionTreeRegressor(nil), f.trees...)
}

// GetParams returns the hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_trees":           f.nTrees,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"random_state":      f.randomState,
		"bootstrap":         f.bootstrap,
		"n_jobs":            f.nJobs,
	}
}

// SetParams updates hyperparameters. It does not refit.
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	nTrees, maxDepth, minSplit, jobs := f.nTrees, f.maxDepth, f.minSamplesSplit, f.nJobs
	bootstrap := f.bootstrap
	seed := int(f.randomState)
	for key, dst := range map[string]*int{
		"n_trees":           &nTrees,
		"max_depth":         &maxDepth,
		"min_samples_split": &minSplit,
		"n_jobs":            &jobs,
		"random_state":      &seed,
	} {
		if err := model.IntParam(params, key, dst); err != nil {
			return err
		}
	}
	if err := model.BoolParam(params, "bootstrap", &bootstrap); err != nil {
		return err
	}
	if err := validateForestParams(nTrees, maxDepth, minSplit); err != nil {
		return err
	}
	f.nTrees, f.maxDepth, f.minSamplesSplit, f.nJobs = nTrees, maxDepth, minSplit, jobs
	f.bootstrap = bootstrap
	f.randomState = int64(seed)
	return nil
}

// String returns a short description.
func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_trees=%d, max_depth=%d, min_samples_split=%d, random_state=%d)",
		f.nTrees, f.maxDepth, f.minSamplesSplit, f.randomState)
}
