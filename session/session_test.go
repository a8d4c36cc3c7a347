package session

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/pkg/errors"
)

func housing(rows int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(3, 4))
	X := mat.NewDense(rows, 3, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		area := 30 + rng.Float64()*120
		rooms := float64(1 + rng.IntN(5))
		floor := float64(rng.IntN(10))
		X.SetRow(i, []float64{area, rooms, floor})
		y.Set(i, 0, 50000+area*2500+rooms*10000-floor*500+rng.NormFloat64()*5000)
	}
	return X, y
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NTrees = 5
	cfg.MaxDepth = 6
	cfg.K = 5
	cfg.Folds = 4
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"n_trees":    func(c *Config) { c.NTrees = 0 },
		"k":          func(c *Config) { c.K = 0 },
		"test_size":  func(c *Config) { c.TestSize = 1 },
		"folds":      func(c *Config) { c.Folds = 1 },
		"rf_weight":  func(c *Config) { c.RFWeight = -1 },
		"max_depth":  func(c *Config) { c.MaxDepth = -1 },
		"min_split":  func(c *Config) { c.MinSamplesSplit = 0 },
		"cart_depth": func(c *Config) { c.CARTMaxDepth = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			var ve *errors.ValidationError
			assert.True(t, errors.As(cfg.Validate(), &ve))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimo.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"n_trees": 25, "k": 7, "rf_weight": 0.6, "knn_weight": 0.4}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.NTrees)
	assert.Equal(t, 7, cfg.K)
	assert.Equal(t, 0.6, cfg.RFWeight)
	assert.Equal(t, 10, cfg.MaxDepth, "unset keys keep defaults")
	assert.Equal(t, 0.2, cfg.TestSize)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"k": 0}`), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSessionTrainAndPredict(t *testing.T) {
	X, y := housing(150)
	s, err := New(smallConfig())
	require.NoError(t, err)

	_, err = s.Predict([]float64{80, 3, 2})
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	report, err := s.Train(context.Background(), X, y)
	require.NoError(t, err)
	assert.True(t, s.IsTrained())
	assert.Regexp(t, `^model-[0-9a-f-]{36}$`, s.Version())
	assert.Equal(t, 3, s.NFeatures())

	assert.Equal(t, 120, report.TrainSamples)
	assert.Equal(t, 30, report.TestSamples)
	assert.Len(t, report.Results, 4)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, s.Version(), report.ModelVersion)
	for _, name := range []string{AlgorithmRandomForest, AlgorithmKNN, AlgorithmCART, AlgorithmHybrid} {
		res, ok := report.Result(name)
		require.True(t, ok, name)
		assert.InDelta(t, 100-res.MAPE, res.Accuracy, 1e-12)
		assert.Greater(t, res.MAE, 0.0)
		assert.Len(t, report.Predictions[name], 30)
	}

	p, err := s.Predict([]float64{80, 3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.7*p.RandomForest+0.3*p.KNN, p.Hybrid, 1e-9)

	_, err = s.Predict([]float64{80, 3})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	batch, err := s.PredictBatch(mat.NewDense(1, 3, []float64{80, 3, 2}))
	require.NoError(t, err)
	assert.InDelta(t, p.Hybrid, batch.At(0, 0), 1e-9)
}

func TestSessionSaveLoad(t *testing.T) {
	X, y := housing(120)
	dir := filepath.Join(t.TempDir(), "models")

	a, err := New(smallConfig())
	require.NoError(t, err)
	require.Error(t, a.Save(dir), "untrained session cannot be saved")

	_, err = a.Train(context.Background(), X, y)
	require.NoError(t, err)
	a.SetFeatureNames([]string{"Area", "Rooms", "Floor"})
	require.NoError(t, a.Save(dir))
	assert.True(t, Saved(dir))

	b, err := New(smallConfig())
	require.NoError(t, err)
	require.NoError(t, b.Load(dir))
	assert.Equal(t, a.Version(), b.Version())
	assert.Equal(t, []string{"Area", "Rooms", "Floor"}, b.FeatureNames())

	pa, err := a.PredictBatch(X)
	require.NoError(t, err)
	pb, err := b.PredictBatch(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb), "reloaded models must predict bit-identically")

	ra, err := a.Evaluate(context.Background(), X, y)
	require.NoError(t, err)
	rb, err := b.Evaluate(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, ra.Results, rb.Results)
	assert.NotEqual(t, ra.RunID, rb.RunID)
}

func TestSessionLoadErrors(t *testing.T) {
	s, err := New(smallConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	assert.Error(t, s.Load(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ForestFile), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, KNNFile), []byte("garbage"), 0o644))
	assert.Error(t, s.Load(dir))
	assert.False(t, s.IsTrained())
}

func TestLoadOrTrain(t *testing.T) {
	X, y := housing(100)
	dir := t.TempDir()

	a, err := New(smallConfig())
	require.NoError(t, err)
	first, err := a.LoadOrTrain(context.Background(), dir, X, y)
	require.NoError(t, err)
	require.True(t, Saved(dir))

	b, err := New(smallConfig())
	require.NoError(t, err)
	second, err := b.LoadOrTrain(context.Background(), dir, X, y)
	require.NoError(t, err)

	assert.Equal(t, a.Version(), b.Version())
	assert.Equal(t, first.Results, second.Results)
}

func TestSessionCrossValidate(t *testing.T) {
	X, y := housing(80)
	s, err := New(smallConfig())
	require.NoError(t, err)

	res, err := s.CrossValidate(context.Background(), X, y)
	require.NoError(t, err)
	assert.Len(t, res.TestScores, 4)
	for _, score := range res.TestScores {
		assert.LessOrEqual(t, score, 100.0)
	}
	assert.False(t, s.IsTrained(), "cross-validation does not train the session")
}
