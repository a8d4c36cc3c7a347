package session

// AlgorithmResult holds one algorithm's held-out scores.
type AlgorithmResult struct {
	Name string  `json:"name"`
	MAE  float64 `json:"mae"`
	// MAPE is a percentage; Accuracy = 100 - MAPE.
	MAPE     float64 `json:"mape"`
	Accuracy float64 `json:"accuracy"`
}

// EvaluationReport is the held-out comparison of the forest, KNN, a
// reference CART tree and the hybrid blend.
type EvaluationReport struct {
	// RunID identifies this evaluation run.
	RunID        string            `json:"run_id"`
	ModelVersion string            `json:"model_version"`
	TrainSamples int               `json:"train_samples"`
	TestSamples  int               `json:"test_samples"`
	Results      []AlgorithmResult `json:"results"`

	YTrue       []float64            `json:"-"`
	Predictions map[string][]float64 `json:"-"`
}

// Result returns the entry for name.
func (r *EvaluationReport) Result(name string) (AlgorithmResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return AlgorithmResult{}, false
}

// Best returns the entry with the lowest MAE (earliest on ties).
func (r *EvaluationReport) Best() AlgorithmResult {
	if len(r.Results) == 0 {
		return AlgorithmResult{}
	}
	best := r.Results[0]
	for _, res := range r.Results[1:] {
		if res.MAE < best.MAE {
			best = res
		}
	}
	return best
}
