package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/session"
)

func trainedSession(t *testing.T) *session.Session {
	t.Helper()
	X := mat.NewDense(40, 2, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		X.SetRow(i, []float64{float64(30 + i*3), float64(1 + i%4)})
		y.Set(i, 0, 1000*float64(30+i*3)+5000*float64(1+i%4))
	}
	cfg := session.DefaultConfig()
	cfg.NTrees = 3
	cfg.K = 3
	s, err := session.New(cfg)
	require.NoError(t, err)
	_, err = s.Train(context.Background(), X, y)
	require.NoError(t, err)
	s.SetFeatureNames([]string{"Area", "Rooms"})
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPredict(t *testing.T) {
	s := trainedSession(t)
	r := NewRouter(s)

	want, err := s.Predict([]float64{90, 2})
	require.NoError(t, err)

	rec := do(t, r, http.MethodPost, "/predict", PredictRequest{Features: []float64{90, 2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, want, got.Prediction)
	assert.Equal(t, s.Version(), got.ModelVersion)

	rec = do(t, r, http.MethodPost, "/predict", PredictRequest{Values: map[string]float64{"Rooms": 2, "Area": 90}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, want, got.Prediction)
}

func TestPredictErrors(t *testing.T) {
	r := NewRouter(trainedSession(t))

	cases := []struct {
		name string
		body any
		code string
	}{
		{"empty", PredictRequest{}, "INVALID_INPUT"},
		{"both", PredictRequest{Features: []float64{1, 2}, Values: map[string]float64{"Area": 1}}, "INVALID_INPUT"},
		{"missing value", PredictRequest{Values: map[string]float64{"Area": 1}}, "INVALID_INPUT"},
		{"unknown value", PredictRequest{Values: map[string]float64{"Area": 1, "Rooms": 2, "Pool": 1}}, "INVALID_INPUT"},
		{"dimension", PredictRequest{Features: []float64{1}}, "DIMENSION_MISMATCH"},
		{"malformed", "not an object", "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, "/predict", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var e errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tc.code, e.Code)
		})
	}
}

func TestUntrained(t *testing.T) {
	s, err := session.New(session.DefaultConfig())
	require.NoError(t, err)
	r := NewRouter(s)

	rec := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"trained":false`)

	rec = do(t, r, http.MethodGet, "/model", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, r, http.MethodPost, "/predict", PredictRequest{Features: []float64{1, 2}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FITTED")
}

func TestModelInfo(t *testing.T) {
	s := trainedSession(t)
	rec := do(t, NewRouter(s), http.MethodGet, "/model", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Version   string         `json:"version"`
		Features  []string       `json:"features"`
		NFeatures int            `json:"n_features"`
		Config    session.Config `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, s.Version(), body.Version)
	assert.Equal(t, []string{"Area", "Rooms"}, body.Features)
	assert.Equal(t, 2, body.NFeatures)
	assert.Equal(t, 3, body.Config.NTrees)
}
