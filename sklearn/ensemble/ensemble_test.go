package ensemble

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/sklearn/neighbors"
	"github.com/propval/estimo/sklearn/tree"
)

func housing(seed uint64, rows int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(rows, 3, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		area := 30 + rng.Float64()*120
		rooms := float64(1 + rng.IntN(5))
		floor := float64(rng.IntN(10))
		X.SetRow(i, []float64{area, rooms, floor})
		y.SetRow(i, []float64{area*2500 + rooms*10000 - floor*500 + rng.NormFloat64()*5000})
	}
	return X, y
}

func TestRandomForest_SingleTreeWithoutBootstrapEqualsTree(t *testing.T) {
	X, y := housing(1, 80)

	rf := NewRandomForestRegressor(WithNTrees(1), WithBootstrap(false), WithMaxDepth(5), WithMinSamplesSplit(4))
	require.NoError(t, rf.Fit(X, y))

	dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(5), tree.WithMinSamplesSplit(4))
	require.NoError(t, dt.Fit(X, y))

	if diff := cmp.Diff(dt.Nodes(), rf.Trees()[0].Nodes()); diff != "" {
		t.Errorf("forest tree differs from a plain tree:\n%s", diff)
	}

	a, err := rf.Predict(X)
	require.NoError(t, err)
	b, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestRandomForest_SeedReproducible(t *testing.T) {
	X, y := housing(2, 120)

	a := NewRandomForestRegressor(WithNTrees(8), WithRandomState(42), WithNJobs(1))
	b := NewRandomForestRegressor(WithNTrees(8), WithRandomState(42), WithNJobs(4))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	for i := range a.Trees() {
		if diff := cmp.Diff(a.Trees()[i].Nodes(), b.Trees()[i].Nodes()); diff != "" {
			t.Fatalf("tree %d differs between worker counts:\n%s", i, diff)
		}
	}

	c := NewRandomForestRegressor(WithNTrees(8), WithRandomState(43))
	require.NoError(t, c.Fit(X, y))
	pa, err := a.Predict(X)
	require.NoError(t, err)
	pc, err := c.Predict(X)
	require.NoError(t, err)
	assert.False(t, mat.Equal(pa, pc), "different seeds should give different forests")
}

func TestRandomForest_PredictIsTreeMean(t *testing.T) {
	X, y := housing(3, 60)
	rf := NewRandomForestRegressor(WithNTrees(5), WithRandomState(7))
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Trees(), 5)

	x := []float64{75, 3, 2}
	var sum float64
	for _, tr := range rf.Trees() {
		p, err := tr.PredictOne(x)
		require.NoError(t, err)
		sum += p
	}
	got, err := rf.PredictOne(x)
	require.NoError(t, err)
	assert.Equal(t, sum/5, got)

	batch, err := rf.Predict(mat.NewDense(1, 3, x))
	require.NoError(t, err)
	assert.Equal(t, got, batch.At(0, 0))
}

func TestRandomForest_Errors(t *testing.T) {
	rf := NewRandomForestRegressor()
	_, err := rf.Predict(mat.NewDense(1, 3, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := housing(4, 20)
	var ve *errors.ValidationError
	assert.True(t, errors.As(NewRandomForestRegressor(WithNTrees(0)).Fit(X, y), &ve))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = rf.FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, rf.IsFitted())

	require.NoError(t, rf.SetParams(map[string]interface{}{"n_trees": 3, "bootstrap": false, "random_state": float64(5)}))
	params := rf.GetParams()
	assert.Equal(t, 3, params["n_trees"])
	assert.Equal(t, false, params["bootstrap"])
	assert.Equal(t, int64(5), params["random_state"])
	assert.Error(t, rf.SetParams(map[string]interface{}{"bootstrap": "yes"}))
}

func TestRandomForest_BinaryRoundTrip(t *testing.T) {
	X, y := housing(5, 100)
	rf := NewRandomForestRegressor(WithNTrees(6), WithRandomState(42))
	require.NoError(t, rf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(rf, &buf))
	loaded := NewRandomForestRegressor()
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	assert.Equal(t, rf.GetParams()["random_state"], loaded.GetParams()["random_state"])
	want, err := rf.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		assert.Equal(t, math.Float64bits(want.At(i, 0)), math.Float64bits(got.At(i, 0)))
	}

	// a payload declaring more trees than it carries
	var e model.Encoder
	e.Varint(fieldNTrees, 2)
	b, err := rf.Trees()[0].MarshalBinary()
	require.NoError(t, err)
	e.RawBytes(fieldTree, b)
	err = NewRandomForestRegressor().UnmarshalBinary(e.Bytes())
	assert.True(t, errors.Is(err, errors.ErrCorruptModel))
}

func TestRandomForest_JSONRoundTrip(t *testing.T) {
	X, y := housing(6, 50)
	rf := NewRandomForestRegressor(WithNTrees(3), WithRandomState(1))
	require.NoError(t, rf.Fit(X, y))

	w, err := rf.ExportWeights()
	require.NoError(t, err)
	data, err := w.ToJSON()
	require.NoError(t, err)

	var back model.ModelWeights
	require.NoError(t, back.FromJSON(data))
	loaded := NewRandomForestRegressor()
	require.NoError(t, loaded.ImportWeights(&back))

	want, err := rf.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestHybridBlender(t *testing.T) {
	b := DefaultHybridBlender()
	assert.InDelta(t, 0.7*100+0.3*200, b.Blend(100, 200), 1e-12)

	out, err := b.BlendVec(mat.NewVecDense(2, []float64{100, 0}), mat.NewDense(2, 1, []float64{200, 10}))
	require.NoError(t, err)
	assert.InDelta(t, 130.0, out.At(0, 0), 1e-12)
	assert.InDelta(t, 3.0, out.At(1, 0), 1e-12)

	_, err = b.BlendVec(mat.NewVecDense(2, nil), mat.NewVecDense(3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = NewHybridBlender(-0.1, 1)
	assert.Error(t, err)
	_, err = NewHybridBlender(0.5, math.NaN())
	assert.Error(t, err)
}

func TestHybridRegressor(t *testing.T) {
	X, y := housing(8, 90)
	h := NewHybridRegressor(
		NewRandomForestRegressor(WithNTrees(4), WithRandomState(3)),
		neighbors.NewKNeighborsRegressor(neighbors.WithNNeighbors(5)),
		DefaultHybridBlender(),
	)
	require.NoError(t, h.Fit(X, y))

	x := []float64{100, 2, 4}
	pRF, err := h.Forest.PredictOne(x)
	require.NoError(t, err)
	pKNN, err := h.KNN.PredictOne(x)
	require.NoError(t, err)

	got, err := h.PredictOne(x)
	require.NoError(t, err)
	assert.Equal(t, 0.7*pRF+0.3*pKNN, got)

	batch, err := h.Predict(mat.NewDense(1, 3, x))
	require.NoError(t, err)
	assert.Equal(t, got, batch.At(0, 0))

	score, err := h.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.5)
}

func TestHybridRegressorFailedFitKeepsModels(t *testing.T) {
	X, y := housing(8, 90)

	h := NewHybridRegressor(
		NewRandomForestRegressor(WithNTrees(3), WithRandomState(1)),
		neighbors.NewKNeighborsRegressor(neighbors.WithNNeighbors(0)),
		DefaultHybridBlender(),
	)
	err := h.Fit(X, y)
	require.Error(t, err)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.False(t, h.Forest.IsFitted(), "forest must not be fitted when knn params are invalid")
	assert.False(t, h.KNN.IsFitted())

	h = NewHybridRegressor(
		NewRandomForestRegressor(WithNTrees(3), WithRandomState(1)),
		neighbors.NewKNeighborsRegressor(neighbors.WithNNeighbors(3)),
		DefaultHybridBlender(),
	)
	require.NoError(t, h.Fit(X, y))
	forest, knn := h.Forest, h.KNN
	x := []float64{100, 2, 4}
	before, err := h.PredictOne(x)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	X2, y2 := housing(9, 40)
	require.ErrorIs(t, h.FitContext(ctx, X2, y2), context.Canceled)

	assert.Same(t, forest, h.Forest)
	assert.Same(t, knn, h.KNN)
	after, err := h.PredictOne(x)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
