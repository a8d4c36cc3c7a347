package main

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propval/estimo/session"
)

func writeCSV(t *testing.T, rows int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(11, 12))
	var b strings.Builder
	b.WriteString("Area,Rooms,Floor,Price\n")
	for i := 0; i < rows; i++ {
		area := 30 + rng.Float64()*120
		rooms := 1 + rng.IntN(5)
		floor := rng.IntN(10)
		price := 40000 + area*2500 + float64(rooms)*10000 - float64(floor)*500
		fmt.Fprintf(&b, "%.1f,%d,%d,%.0f\n", area, rooms, floor, price)
	}
	b.WriteString("70,,2,150000\n")
	path := filepath.Join(t.TempDir(), "houses.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTrainPredictCV(t *testing.T) {
	data := writeCSV(t, 120)
	models := filepath.Join(t.TempDir(), "models")

	out, err := run(t, "train", "--data", data, "--models", models, "--n-trees", "4", "--k", "5")
	require.NoError(t, err, out)
	assert.Contains(t, out, session.AlgorithmHybrid)
	assert.FileExists(t, filepath.Join(models, session.ForestFile))
	assert.FileExists(t, filepath.Join(models, session.KNNFile))
	assert.FileExists(t, filepath.Join(models, session.ManifestFile))

	out, err = run(t, "predict", "--models", models, "--features", "85, 3, 2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Estimated price")

	_, err = run(t, "predict", "--models", models, "--features", "85,x,2")
	assert.Error(t, err)

	out, err = run(t, "cv", "--data", data, "--model", "rf,cart", "--folds", "4", "--n-trees", "3")
	require.NoError(t, err, out)
	assert.Contains(t, out, "rf cross-validation (4 folds)")
	assert.Contains(t, out, "cart cross-validation (4 folds)")

	_, err = run(t, "cv", "--data", data, "--model", "svm")
	assert.Error(t, err)
}

func TestTrainWithConfigFile(t *testing.T) {
	data := writeCSV(t, 60)
	cfg := filepath.Join(t.TempDir(), "estimo.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("n_trees: 3\nk: 4\ntest_size: 0.25\n"), 0o644))

	out, err := run(t, "--config", cfg, "train", "--data", data, "--models", t.TempDir(), "--retrain",
		"--plot", filepath.Join(t.TempDir(), "pred.png"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "train=45 test=15")
}

func TestInvalidSettings(t *testing.T) {
	data := writeCSV(t, 30)

	_, err := run(t, "train", "--data", data, "--models", t.TempDir(), "--k", "0")
	assert.Error(t, err)

	_, err = run(t, "--profile", "gpu", "train", "--data", data)
	assert.Error(t, err)

	_, err = run(t, "--log-format", "xml", "train", "--data", data)
	assert.Error(t, err)
}

func TestParseFeatures(t *testing.T) {
	x, err := parseFeatures("1, 2.5,-3")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, x)

	_, err = parseFeatures("")
	assert.Error(t, err)
}
