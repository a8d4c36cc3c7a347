package ensemble

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/sklearn/tree"
)

// Field numbers of the forest payload; see core/model/codec.go.
const (
	fieldNTrees          protowire.Number = 1
	fieldMaxDepth        protowire.Number = 2
	fieldMinSamplesSplit protowire.Number = 3
	fieldRandomState     protowire.Number = 4
	fieldBootstrap       protowire.Number = 5
	fieldTree            protowire.Number = 6
)

// ModelType implements model.BinaryModel.
func (f *RandomForestRegressor) ModelType() string { return forestName }

// MarshalBinary encodes the hyperparameters and the ordered list of trees.
func (f *RandomForestRegressor) MarshalBinary() ([]byte, error) {
	if err := f.RequireFitted(forestName, "MarshalBinary", -1); err != nil {
		return nil, err
	}
	var e model.Encoder
	e.Varint(fieldNTrees, uint64(len(f.trees)))
	e.Varint(fieldMaxDepth, uint64(f.maxDepth))
	e.Varint(fieldMinSamplesSplit, uint64(f.minSamplesSplit))
	e.Int(fieldRandomState, f.randomState)
	e.Bool(fieldBootstrap, f.bootstrap)
	for i, t := range f.trees {
		b, err := t.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
		e.RawBytes(fieldTree, b)
	}
	return e.Bytes(), nil
}

// UnmarshalBinary restores a forest written by MarshalBinary.
func (f *RandomForestRegressor) UnmarshalBinary(data []byte) error {
	var (
		nTrees, maxDepth, minSplit uint64
		randomState                int64
		bootstrap                  bool
		trees                      []*tree.DecisionTreeRegressor
	)
	err := model.RangeFields(data, func(fd model.Field) error {
		switch fd.Num {
		case fieldNTrees:
			nTrees = fd.Varint
		case fieldMaxDepth:
			maxDepth = fd.Varint
		case fieldMinSamplesSplit:
			minSplit = fd.Varint
		case fieldRandomState:
			randomState = fd.Int()
		case fieldBootstrap:
			bootstrap = fd.Bool()
		case fieldTree:
			t := tree.NewDecisionTreeRegressor()
			if err := t.UnmarshalBinary(fd.Bytes); err != nil {
				return errors.Wrapf(err, "tree %d", len(trees))
			}
			trees = append(trees, t)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := f.install(int(nTrees), trees); err != nil {
		return err
	}
	f.maxDepth = int(maxDepth)
	f.minSamplesSplit = int(minSplit)
	f.randomState = randomState
	f.bootstrap = bootstrap
	return nil
}

// install checks that trees form a consistent forest and swaps them in.
func (f *RandomForestRegressor) install(nTrees int, trees []*tree.DecisionTreeRegressor) error {
	if len(trees) == 0 || len(trees) != nTrees {
		return errors.Wrapf(errors.ErrCorruptModel, "forest declares %d trees, found %d", nTrees, len(trees))
	}
	nFeatures := trees[0].NFeatures()
	for i, t := range trees {
		if t.NFeatures() != nFeatures {
			return errors.Wrapf(errors.ErrCorruptModel, "tree %d has %d features, want %d", i, t.NFeatures(), nFeatures)
		}
	}
	f.nTrees = nTrees
	f.trees = trees
	f.SetFitted(nFeatures)
	return nil
}

type jsonForest struct {
	Trees []*model.ModelWeights `json:"trees"`
}

// ExportWeights returns the forest in the JSON weights schema; the payload
// holds one tree weights object per tree, in order.
func (f *RandomForestRegressor) ExportWeights() (*model.ModelWeights, error) {
	if err := f.RequireFitted(forestName, "ExportWeights", -1); err != nil {
		return nil, err
	}
	jf := jsonForest{Trees: make([]*model.ModelWeights, len(f.trees))}
	for i, t := range f.trees {
		w, err := t.ExportWeights()
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
		jf.Trees[i] = w
	}
	payload, err := json.Marshal(jf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode forest")
	}
	return &model.ModelWeights{
		ModelType:       forestName,
		Version:         model.FormatVersion,
		Hyperparameters: f.GetParams(),
		Payload:         payload,
		IsFitted:        true,
	}, nil
}

// ImportWeights restores a forest from the JSON weights schema.
func (f *RandomForestRegressor) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}
	if w.ModelType != forestName {
		return errors.Wrapf(errors.ErrCorruptModel, "model type %s, want %s", w.ModelType, forestName)
	}
	var jf jsonForest
	if err := json.Unmarshal(w.Payload, &jf); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}
	trees := make([]*tree.DecisionTreeRegressor, len(jf.Trees))
	for i, tw := range jf.Trees {
		t := tree.NewDecisionTreeRegressor()
		if tw == nil {
			return errors.Wrapf(errors.ErrCorruptModel, "tree %d is null", i)
		}
		if err := t.ImportWeights(tw); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t
	}
	if err := f.SetParams(w.Hyperparameters); err != nil {
		return err
	}
	return f.install(len(trees), trees)
}
