package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propval/estimo/model_selection"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/session"
)

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		0:           "0.00",
		12.345:      "12.35",
		999.999:     "1,000.00",
		1234567.891: "1,234,567.89",
		-45000.5:    "-45,000.50",
		100000:      "100,000.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(in), "%v", in)
	}
}

func sampleReport() *session.EvaluationReport {
	return &session.EvaluationReport{
		RunID:        "run-1",
		ModelVersion: "model-x",
		TrainSamples: 80,
		TestSamples:  20,
		Results: []session.AlgorithmResult{
			{Name: session.AlgorithmRandomForest, MAE: 12000, MAPE: 8, Accuracy: 92},
			{Name: session.AlgorithmKNN, MAE: 15000, MAPE: 10, Accuracy: 90},
			{Name: session.AlgorithmCART, MAE: 18000, MAPE: 12.5, Accuracy: 87.5},
			{Name: session.AlgorithmHybrid, MAE: 11000, MAPE: 7.25, Accuracy: 92.75},
		},
	}
}

func TestEvaluationTable(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Evaluation(sampleReport())
	out := buf.String()

	assert.Contains(t, out, "ALGORITHM")
	assert.Contains(t, out, "Random Forest")
	assert.Contains(t, out, "12,000.00")
	assert.Contains(t, out, "92.75%")
	assert.Contains(t, out, "train=80 test=20 run=run-1")
	assert.NotContains(t, out, "\x1b[", "colors disabled")

	// the hybrid row sits below its own separator
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, session.AlgorithmHybrid) {
			assert.True(t, strings.HasPrefix(lines[i-1], "----"))
		}
	}
}

func TestEvaluationTableColor(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Evaluation(sampleReport())
	assert.Contains(t, buf.String(), "\x1b[32m")
}

func TestCrossValidationTable(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).CrossValidation("rf", &model_selection.CVResult{
		TestScores: []float64{90, 95},
		TrainSizes: []int{6, 6},
		TestSizes:  []int{2, 2},
	})
	out := buf.String()
	assert.Contains(t, out, "rf cross-validation (2 folds)")
	assert.Contains(t, out, "Mean accuracy: 92.50%")
}

func TestPredictionTable(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Prediction(session.Prediction{RandomForest: 200000, KNN: 180000, Hybrid: 194000})
	assert.Contains(t, buf.String(), "194,000.00")
}

func TestPlotPredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.png")
	err := PlotPredictions(path, []float64{1, 2, 3}, map[string][]float64{
		"rf":  {1.1, 2.2, 2.9},
		"knn": {0.8, 2.1, 3.3},
	})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = PlotPredictions(path, []float64{1, 2}, map[string][]float64{"rf": {1}})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	assert.Error(t, PlotPredictions(path, nil, nil))
}
