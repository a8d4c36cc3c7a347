// Package tree implements a CART regression tree.
//
// Nodes are stored in a flat arena (Tree.Nodes) in pre-order; handle 0 is the
// root and children are referenced by index. A fitted tree is immutable and
// safe for concurrent prediction; Fit replaces the arena wholesale.
package tree

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/metrics"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
)

const modelName = "DecisionTreeRegressor"

// Node is one arena entry. Exactly one variant is meaningful: when Leaf is
// true only Value is used, otherwise Feature, Threshold, Left and Right.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
}

// DecisionTreeRegressor grows a regression tree by choosing the splits that
// minimize mean squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	maxDepth        int
	minSamplesSplit int
	nJobs           int

	nodes []Node
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth. A tree of depth 0 is a single leaf.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples a node needs to be
// considered for splitting.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesSplit = n
	}
}

// WithNJobs sets the number of goroutines used for the per-node best split
// search across features. 1 (the default) is sequential; <= 0 uses all CPUs.
// The resulting tree does not depend on this setting.
func WithNJobs(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.nJobs = n
	}
}

// NewDecisionTreeRegressor creates a tree with max_depth 7 and
// min_samples_split 5 unless overridden.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		maxDepth:        7,
		minSamplesSplit: 5,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validateParams() error {
	if t.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", t.maxDepth)
	}
	if t.minSamplesSplit < 1 {
		return errors.NewValidationError("min_samples_split", "must be >= 1", t.minSamplesSplit)
	}
	return nil
}

// Fit builds the tree from X (n×features) and y (n×1). On error the
// previously fitted tree, if any, is kept.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if err := t.validateParams(); err != nil {
		return err
	}
	rows, cols, err := model.ValidateFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	start := time.Now()
	nodes := build(Columns(X), model.Column(y), t.maxDepth, t.minSamplesSplit, t.nJobs)

	t.nodes = nodes
	t.SetFitted(cols)

	log.GetLoggerWithName("tree").Debug("tree fitted",
		log.ModelNameKey, modelName,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DepthKey, t.Depth(),
		log.LeavesKey, t.NLeaves(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// FitIndices builds the tree from the rows of cols selected by idx (rows may
// repeat). cols is feature-major: cols[j][i] is feature j of row i. It is the
// entry point used by the forest, which shares one column copy across trees.
func (t *DecisionTreeRegressor) FitIndices(cols [][]float64, y []float64, idx []int) error {
	if err := t.validateParams(); err != nil {
		return err
	}
	if len(idx) == 0 || len(cols) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.FitIndices", "empty data", errors.ErrEmptyData)
	}
	sub := make([][]float64, len(cols))
	for j, col := range cols {
		s := make([]float64, len(idx))
		for k, i := range idx {
			s[k] = col[i]
		}
		sub[j] = s
	}
	ySub := make([]float64, len(idx))
	for k, i := range idx {
		ySub[k] = y[i]
	}

	t.nodes = build(sub, ySub, t.maxDepth, t.minSamplesSplit, t.nJobs)
	t.SetFitted(len(cols))
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Predict")

	rows, cols, err := model.ValidatePredictInput("DecisionTreeRegressor.Predict", X)
	if err != nil {
		return nil, err
	}
	if err := t.RequireFitted(modelName, "Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, t.predictRow(row))
	}
	return out, nil
}

// PredictOne predicts a single sample.
func (t *DecisionTreeRegressor) PredictOne(x []float64) (float64, error) {
	if err := t.RequireFitted(modelName, "PredictOne", len(x)); err != nil {
		return 0, err
	}
	if err := errors.CheckNumericalStability("DecisionTreeRegressor.PredictOne", x, 0); err != nil {
		return 0, err
	}
	return t.predictRow(x), nil
}

func (t *DecisionTreeRegressor) predictRow(x []float64) float64 {
	n := &t.nodes[0]
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = &t.nodes[n.Left]
		} else {
			n = &t.nodes[n.Right]
		}
	}
	return n.Value
}

// Score returns the coefficient of determination R² on (X, y).
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Nodes returns a copy of the node arena in pre-order.
func (t *DecisionTreeRegressor) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// Root returns the root node. It panics if the tree is not fitted.
func (t *DecisionTreeRegressor) Root() Node {
	return t.nodes[0]
}

// Depth returns the length of the longest root-to-leaf path (0 for a single
// leaf, 0 for an unfitted tree).
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	return t.depth(0)
}

func (t *DecisionTreeRegressor) depth(h int32) int {
	n := t.nodes[h]
	if n.Leaf {
		return 0
	}
	return 1 + max(t.depth(n.Left), t.depth(n.Right))
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	leaves := 0
	for _, n := range t.nodes {
		if n.Leaf {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"n_jobs":            t.nJobs,
	}
}

// SetParams updates hyperparameters. It does not refit.
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	maxDepth, minSamplesSplit, nJobs := t.maxDepth, t.minSamplesSplit, t.nJobs
	if err := model.IntParam(params, "max_depth", &maxDepth); err != nil {
		return err
	}
	if err := model.IntParam(params, "min_samples_split", &minSamplesSplit); err != nil {
		return err
	}
	if err := model.IntParam(params, "n_jobs", &nJobs); err != nil {
		return err
	}
	if maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", maxDepth)
	}
	if minSamplesSplit < 1 {
		return errors.NewValidationError("min_samples_split", "must be >= 1", minSamplesSplit)
	}
	t.maxDepth, t.minSamplesSplit, t.nJobs = maxDepth, minSamplesSplit, nJobs
	return nil
}

// String returns a short description.
func (t *DecisionTreeRegressor) String() string {
	if !t.IsFitted() {
		return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d)", t.maxDepth, t.minSamplesSplit)
	}
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d, depth=%d, leaves=%d)",
		t.maxDepth, t.minSamplesSplit, t.Depth(), t.NLeaves())
}

// Columns copies X into feature-major slices, the layout FitIndices takes.
func Columns(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(make([]float64, r), j, X)
	}
	return cols
}
