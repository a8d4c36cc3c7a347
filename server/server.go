// Package server exposes a trained session over HTTP.
//
//	GET  /healthz   liveness
//	GET  /model     model version, feature names and config
//	POST /predict   {"features": [..]} or {"values": {"Area": 80, ...}}
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/session"
)

// PredictRequest carries one sample either positionally or by feature name.
type PredictRequest struct {
	Features []float64          `json:"features"`
	Values   map[string]float64 `json:"values"`
}

// PredictResponse is the body of a successful /predict call.
type PredictResponse struct {
	session.Prediction
	ModelVersion string `json:"model_version"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewRouter builds the HTTP handler for s.
func NewRouter(s *session.Session) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.GetLoggerWithName("server")))

	h := &handler{s: s}
	r.GET("/healthz", h.health)
	r.GET("/model", h.model)
	r.POST("/predict", h.predict)
	return r
}

type handler struct {
	s *session.Session
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "trained": h.s.IsTrained()})
}

func (h *handler) model(c *gin.Context) {
	if !h.s.IsTrained() {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no trained model", Code: log.ErrorNotFitted})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":    h.s.Version(),
		"features":   h.s.FeatureNames(),
		"n_features": h.s.NFeatures(),
		"config":     h.s.Config(),
	})
}

func (h *handler) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: log.ErrorInvalidInput})
		return
	}

	x, err := h.sample(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: log.ErrorInvalidInput})
		return
	}

	pred, err := h.s.Predict(x)
	if err != nil {
		status, code := classify(err)
		c.JSON(status, errorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, PredictResponse{Prediction: pred, ModelVersion: h.s.Version()})
}

// sample resolves the request into a feature vector in training column order.
func (h *handler) sample(req PredictRequest) ([]float64, error) {
	switch {
	case len(req.Features) > 0 && len(req.Values) > 0:
		return nil, errors.NewValueError("predict", "set either features or values, not both")
	case len(req.Features) > 0:
		return req.Features, nil
	case len(req.Values) > 0:
		names := h.s.FeatureNames()
		if len(names) == 0 {
			return nil, errors.NewValueError("predict", "model has no feature names; send features")
		}
		x := make([]float64, len(names))
		for i, name := range names {
			v, ok := req.Values[name]
			if !ok {
				return nil, errors.NewValueError("predict", "missing value for "+name)
			}
			x[i] = v
		}
		if len(req.Values) != len(names) {
			return nil, errors.NewValueError("predict", "unknown feature in values")
		}
		return x, nil
	default:
		return nil, errors.NewValueError("predict", "empty request")
	}
}

func classify(err error) (int, string) {
	var nf *errors.NotFittedError
	var de *errors.DimensionError
	switch {
	case errors.As(err, &nf):
		return http.StatusServiceUnavailable, log.ErrorNotFitted
	case errors.As(err, &de):
		return http.StatusBadRequest, log.ErrorDimensionMismatch
	default:
		var ni *errors.NumericalInstabilityError
		if errors.As(err, &ni) {
			return http.StatusBadRequest, log.ErrorInvalidInput
		}
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func requestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"http.method", c.Request.Method,
			"http.path", c.FullPath(),
			"http.status", c.Writer.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}
