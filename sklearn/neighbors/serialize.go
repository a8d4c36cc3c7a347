package neighbors

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/preprocessing"
)

// Field numbers of the KNN payload; see core/model/codec.go.
const (
	fieldK         protowire.Number = 1
	fieldEpsilon   protowire.Number = 2
	fieldNFeatures protowire.Number = 3
	fieldXTrain    protowire.Number = 4
	fieldYTrain    protowire.Number = 5
	fieldMin       protowire.Number = 6
	fieldMax       protowire.Number = 7
)

// ModelType implements model.BinaryModel.
func (r *KNeighborsRegressor) ModelType() string { return modelName }

// MarshalBinary encodes k, epsilon, the normalized training matrix (row
// major), the targets and the per-feature bounds.
func (r *KNeighborsRegressor) MarshalBinary() ([]byte, error) {
	if err := r.RequireFitted(modelName, "MarshalBinary", -1); err != nil {
		return nil, err
	}
	var e model.Encoder
	e.Varint(fieldK, uint64(r.nNeighbors))
	e.Double(fieldEpsilon, r.epsilon)
	e.Varint(fieldNFeatures, uint64(r.NFeatures()))
	e.Doubles(fieldXTrain, r.xTrain.RawMatrix().Data)
	e.Doubles(fieldYTrain, r.yTrain)
	e.Doubles(fieldMin, r.scaler.DataMin)
	e.Doubles(fieldMax, r.scaler.DataMax)
	return e.Bytes(), nil
}

// UnmarshalBinary restores state written by MarshalBinary.
func (r *KNeighborsRegressor) UnmarshalBinary(data []byte) error {
	var (
		k         uint64
		eps       float64
		nFeatures uint64
		state     knnState
	)
	err := model.RangeFields(data, func(f model.Field) error {
		var err error
		switch f.Num {
		case fieldK:
			k = f.Varint
		case fieldEpsilon:
			eps = f.Float64()
		case fieldNFeatures:
			nFeatures = f.Varint
		case fieldXTrain:
			state.x, err = f.Doubles()
		case fieldYTrain:
			state.y, err = f.Doubles()
		case fieldMin:
			state.min, err = f.Doubles()
		case fieldMax:
			state.max, err = f.Doubles()
		}
		return err
	})
	if err != nil {
		return err
	}
	if err := validateParams(int(k), eps); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}
	return r.restore(int(k), eps, int(nFeatures), state)
}

type knnState struct {
	x, y, min, max []float64
}

func (r *KNeighborsRegressor) restore(k int, eps float64, nFeatures int, s knnState) error {
	n := len(s.y)
	if nFeatures <= 0 || n == 0 || len(s.x) != n*nFeatures || len(s.min) != nFeatures || len(s.max) != nFeatures {
		return errors.Wrapf(errors.ErrCorruptModel,
			"inconsistent KNN state: %d targets, %d values, %d features", n, len(s.x), nFeatures)
	}
	scaler, err := preprocessing.NewMinMaxScalerFromBounds(s.min, s.max)
	if err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}

	r.nNeighbors = k
	r.epsilon = eps
	r.scaler = scaler
	r.xTrain = mat.NewDense(n, nFeatures, s.x)
	r.yTrain = s.y
	r.SetFitted(nFeatures)
	return nil
}

type jsonKNN struct {
	XTrain [][]float64 `json:"x_train"`
	YTrain []float64   `json:"y_train"`
	Min    []float64   `json:"min"`
	Max    []float64   `json:"max"`
}

// ExportWeights returns the fitted state in the JSON weights schema.
func (r *KNeighborsRegressor) ExportWeights() (*model.ModelWeights, error) {
	if err := r.RequireFitted(modelName, "ExportWeights", -1); err != nil {
		return nil, err
	}
	n, _ := r.xTrain.Dims()
	jk := jsonKNN{XTrain: make([][]float64, n), YTrain: r.yTrain}
	for i := 0; i < n; i++ {
		jk.XTrain[i] = r.xTrain.RawRowView(i)
	}
	jk.Min, jk.Max = r.Bounds()

	payload, err := json.Marshal(jk)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode KNN state")
	}
	return &model.ModelWeights{
		ModelType:       modelName,
		Version:         model.FormatVersion,
		Hyperparameters: r.GetParams(),
		Payload:         payload,
		IsFitted:        true,
	}, nil
}

// ImportWeights restores state from the JSON weights schema.
func (r *KNeighborsRegressor) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}
	if w.ModelType != modelName {
		return errors.Wrapf(errors.ErrCorruptModel, "model type %s, want %s", w.ModelType, modelName)
	}
	var jk jsonKNN
	if err := json.Unmarshal(w.Payload, &jk); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}

	k, eps, jobs := r.nNeighbors, r.epsilon, r.nJobs
	if err := model.IntParam(w.Hyperparameters, "n_neighbors", &k); err != nil {
		return err
	}
	if err := model.FloatParam(w.Hyperparameters, "epsilon", &eps); err != nil {
		return err
	}
	if err := model.IntParam(w.Hyperparameters, "n_jobs", &jobs); err != nil {
		return err
	}
	if err := validateParams(k, eps); err != nil {
		return err
	}

	nFeatures := len(jk.Min)
	flat := make([]float64, 0, len(jk.XTrain)*nFeatures)
	for _, row := range jk.XTrain {
		if len(row) != nFeatures {
			return errors.Wrapf(errors.ErrCorruptModel, "x_train row has %d values, want %d", len(row), nFeatures)
		}
		flat = append(flat, row...)
	}
	if err := r.restore(k, eps, nFeatures, knnState{x: flat, y: jk.YTrain, min: jk.Min, max: jk.Max}); err != nil {
		return err
	}
	r.nJobs = jobs
	return nil
}
