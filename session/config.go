package session

import (
	"math"

	"github.com/spf13/viper"

	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/sklearn/ensemble"
	"github.com/propval/estimo/sklearn/neighbors"
	"github.com/propval/estimo/sklearn/tree"
)

// Config holds the session hyperparameters.
type Config struct {
	NTrees          int     `json:"n_trees" mapstructure:"n_trees"`
	MaxDepth        int     `json:"max_depth" mapstructure:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split" mapstructure:"min_samples_split"`
	K               int     `json:"k" mapstructure:"k"`
	CARTMaxDepth    int     `json:"cart_max_depth" mapstructure:"cart_max_depth"`
	TestSize        float64 `json:"test_size" mapstructure:"test_size"`
	Folds           int     `json:"folds" mapstructure:"folds"`
	RFWeight        float64 `json:"rf_weight" mapstructure:"rf_weight"`
	KNNWeight       float64 `json:"knn_weight" mapstructure:"knn_weight"`
	// RandomState < 0 draws a new bootstrap seed on every training run.
	RandomState int64 `json:"random_state" mapstructure:"random_state"`
	// NJobs bounds the worker pools (<= 0: all CPUs).
	NJobs int `json:"n_jobs" mapstructure:"n_jobs"`
}

// DefaultConfig returns the production settings: 15 trees of depth 10, k=15,
// a 20% held-out partition and the 0.7/0.3 blend.
func DefaultConfig() Config {
	return Config{
		NTrees:          15,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		K:               15,
		CARTMaxDepth:    10,
		TestSize:        0.2,
		Folds:           10,
		RFWeight:        0.7,
		KNNWeight:       0.3,
		RandomState:     42,
		NJobs:           0,
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	switch {
	case c.NTrees < 1:
		return errors.NewValidationError("n_trees", "must be >= 1", c.NTrees)
	case c.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", c.MaxDepth)
	case c.MinSamplesSplit < 1:
		return errors.NewValidationError("min_samples_split", "must be >= 1", c.MinSamplesSplit)
	case c.K < 1:
		return errors.NewValidationError("k", "must be >= 1", c.K)
	case c.CARTMaxDepth < 0:
		return errors.NewValidationError("cart_max_depth", "must be >= 0", c.CARTMaxDepth)
	case math.IsNaN(c.TestSize) || c.TestSize <= 0 || c.TestSize >= 1:
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.TestSize)
	case c.Folds < 2:
		return errors.NewValidationError("folds", "must be >= 2", c.Folds)
	}
	return c.Blender().Validate()
}

// Blender returns the configured blend.
func (c Config) Blender() ensemble.HybridBlender {
	return ensemble.HybridBlender{RFWeight: c.RFWeight, KNNWeight: c.KNNWeight}
}

// NewForest returns an unfitted forest with the configured parameters.
func (c Config) NewForest() *ensemble.RandomForestRegressor {
	return ensemble.NewRandomForestRegressor(
		ensemble.WithNTrees(c.NTrees),
		ensemble.WithMaxDepth(c.MaxDepth),
		ensemble.WithMinSamplesSplit(c.MinSamplesSplit),
		ensemble.WithRandomState(c.RandomState),
		ensemble.WithNJobs(c.NJobs),
	)
}

// NewKNN returns an unfitted KNN regressor with the configured k.
func (c Config) NewKNN() *neighbors.KNeighborsRegressor {
	return neighbors.NewKNeighborsRegressor(
		neighbors.WithNNeighbors(c.K),
		neighbors.WithNJobs(c.NJobs),
	)
}

// NewCART returns the standalone reference tree.
func (c Config) NewCART() *tree.DecisionTreeRegressor {
	return tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(c.CARTMaxDepth),
		tree.WithMinSamplesSplit(c.MinSamplesSplit),
		tree.WithNJobs(c.NJobs),
	)
}

// SetDefaults registers DefaultConfig under the mapstructure keys of v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("n_trees", d.NTrees)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("min_samples_split", d.MinSamplesSplit)
	v.SetDefault("k", d.K)
	v.SetDefault("cart_max_depth", d.CARTMaxDepth)
	v.SetDefault("test_size", d.TestSize)
	v.SetDefault("folds", d.Folds)
	v.SetDefault("rf_weight", d.RFWeight)
	v.SetDefault("knn_weight", d.KNNWeight)
	v.SetDefault("random_state", d.RandomState)
	v.SetDefault("n_jobs", d.NJobs)
}

// ConfigFromViper decodes and validates the settings held by v. Keys missing
// from v fall back to DefaultConfig.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a JSON, YAML or TOML file (by extension) over the
// defaults.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	return ConfigFromViper(v)
}
