package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/sklearn/ensemble"
	"github.com/propval/estimo/sklearn/neighbors"
)

// Files written by Save.
const (
	ForestFile   = "rf_model.pb"
	KNNFile      = "knn_model.pb"
	ManifestFile = "session.json"
)

// manifest is the metadata saved next to the models.
type manifest struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Features  []string  `json:"features,omitempty"`
	Config    Config    `json:"config"`
}

// Save writes the forest, the KNN regressor and a JSON manifest into dir,
// creating it if needed.
func (s *Session) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.forest == nil || s.knn == nil {
		return errors.NewNotFittedError("Session", "Save")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	if err := model.SaveModel(s.forest, filepath.Join(dir, ForestFile)); err != nil {
		return err
	}
	if err := model.SaveModel(s.knn, filepath.Join(dir, KNNFile)); err != nil {
		return err
	}

	m := manifest{Version: s.version, TrainedAt: s.trained, Features: s.features, Config: s.cfg}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), b, 0o644); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}

	s.logger.Info("Models saved",
		log.OperationKey, log.OperationSave,
		"model.version", s.version,
		"path", dir,
	)
	return nil
}

// Load replaces the session's models with those saved in dir. The manifest
// is optional; without it the session gets a fresh version id.
func (s *Session) Load(dir string) error {
	forest := ensemble.NewRandomForestRegressor()
	if err := model.LoadModel(forest, filepath.Join(dir, ForestFile)); err != nil {
		return err
	}
	knn := neighbors.NewKNeighborsRegressor()
	if err := model.LoadModel(knn, filepath.Join(dir, KNNFile)); err != nil {
		return err
	}
	if forest.NFeatures() != knn.NFeatures() {
		return errors.Wrapf(errors.ErrCorruptModel, "forest has %d features, knn has %d",
			forest.NFeatures(), knn.NFeatures())
	}

	var m manifest
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &m); err != nil {
			return errors.Wrapf(errors.ErrCorruptModel, "manifest: %v", err)
		}
	case os.IsNotExist(err):
		m.Version = newVersion()
	default:
		return errors.Wrap(err, "failed to read manifest")
	}

	s.mu.Lock()
	s.forest = forest
	s.knn = knn
	s.version = m.Version
	s.trained = m.TrainedAt
	s.features = m.Features
	s.mu.Unlock()

	s.logger.Info("Models loaded",
		log.OperationKey, log.OperationLoad,
		"model.version", m.Version,
		log.FeaturesKey, forest.NFeatures(),
		"path", dir,
	)
	return nil
}

// Saved reports whether dir holds both model files.
func Saved(dir string) bool {
	for _, name := range []string{ForestFile, KNNFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// LoadOrTrain loads the models saved in dir and evaluates them on X, y; if
// dir holds no models it trains on X, y and saves the result.
func (s *Session) LoadOrTrain(ctx context.Context, dir string, X, y mat.Matrix) (*EvaluationReport, error) {
	if Saved(dir) {
		if err := s.Load(dir); err != nil {
			return nil, err
		}
		return s.Evaluate(ctx, X, y)
	}

	s.logger.Info("No saved models found, training", "path", dir)
	report, err := s.Train(ctx, X, y)
	if err != nil {
		return nil, err
	}
	if err := s.Save(dir); err != nil {
		return nil, err
	}
	return report, nil
}
