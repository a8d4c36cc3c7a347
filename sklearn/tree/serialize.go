package tree

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
)

// Field numbers of the tree payload; see core/model/codec.go.
const (
	fieldMaxDepth        protowire.Number = 1
	fieldMinSamplesSplit protowire.Number = 2
	fieldNFeatures       protowire.Number = 3
	fieldNode            protowire.Number = 4

	nodeKind      protowire.Number = 1
	nodeValue     protowire.Number = 2
	nodeFeature   protowire.Number = 3
	nodeThreshold protowire.Number = 4

	kindLeaf  = 0
	kindSplit = 1
)

// ModelType implements model.BinaryModel.
func (t *DecisionTreeRegressor) ModelType() string { return modelName }

// MarshalBinary encodes the fitted tree as a pre-order list of tagged nodes.
func (t *DecisionTreeRegressor) MarshalBinary() ([]byte, error) {
	if err := t.RequireFitted(modelName, "MarshalBinary", -1); err != nil {
		return nil, err
	}
	var e model.Encoder
	e.Varint(fieldMaxDepth, uint64(t.maxDepth))
	e.Varint(fieldMinSamplesSplit, uint64(t.minSamplesSplit))
	e.Varint(fieldNFeatures, uint64(t.NFeatures()))
	for _, n := range t.nodes {
		e.Message(fieldNode, func(ne *model.Encoder) {
			if n.Leaf {
				ne.Varint(nodeKind, kindLeaf)
				ne.Double(nodeValue, n.Value)
				return
			}
			ne.Varint(nodeKind, kindSplit)
			ne.Varint(nodeFeature, uint64(n.Feature))
			ne.Double(nodeThreshold, n.Threshold)
		})
	}
	return e.Bytes(), nil
}

// UnmarshalBinary restores a tree written by MarshalBinary. The receiver is
// left unchanged on error.
func (t *DecisionTreeRegressor) UnmarshalBinary(data []byte) error {
	var maxDepth, minSamplesSplit, nFeatures uint64
	var flat []Node
	err := model.RangeFields(data, func(f model.Field) error {
		switch f.Num {
		case fieldMaxDepth:
			maxDepth = f.Varint
		case fieldMinSamplesSplit:
			minSamplesSplit = f.Varint
		case fieldNFeatures:
			nFeatures = f.Varint
		case fieldNode:
			n, err := decodeNode(f.Bytes)
			if err != nil {
				return err
			}
			flat = append(flat, n)
		}
		return nil
	})
	if err != nil {
		return err
	}
	nodes, err := linkPreorder(flat, int(nFeatures))
	if err != nil {
		return err
	}

	t.maxDepth = int(maxDepth)
	t.minSamplesSplit = int(minSamplesSplit)
	t.nodes = nodes
	t.SetFitted(int(nFeatures))
	return nil
}

func decodeNode(b []byte) (Node, error) {
	var n Node
	kind := uint64(kindLeaf)
	err := model.RangeFields(b, func(f model.Field) error {
		switch f.Num {
		case nodeKind:
			kind = f.Varint
		case nodeValue:
			n.Value = f.Float64()
		case nodeFeature:
			n.Feature = int(f.Varint)
		case nodeThreshold:
			n.Threshold = f.Float64()
		}
		return nil
	})
	if err != nil {
		return Node{}, err
	}
	switch kind {
	case kindLeaf:
		n.Leaf = true
	case kindSplit:
	default:
		return Node{}, errors.Wrapf(errors.ErrCorruptModel, "unknown node kind %d", kind)
	}
	return n, nil
}

// linkPreorder assigns child handles to a pre-order node list and checks that
// it describes exactly one complete tree.
func linkPreorder(flat []Node, nFeatures int) ([]Node, error) {
	if len(flat) == 0 || nFeatures <= 0 {
		return nil, errors.Wrap(errors.ErrCorruptModel, "tree has no nodes")
	}
	nodes := append([]Node(nil), flat...)

	var link func(h int) (next int, err error)
	link = func(h int) (int, error) {
		if h >= len(nodes) {
			return 0, errors.Wrap(errors.ErrCorruptModel, "truncated node list")
		}
		n := &nodes[h]
		if n.Leaf {
			n.Feature, n.Threshold, n.Left, n.Right = 0, 0, 0, 0
			return h + 1, nil
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return 0, errors.Wrapf(errors.ErrCorruptModel, "node %d: feature %d out of range", h, n.Feature)
		}
		n.Value = 0
		n.Left = int32(h + 1)
		next, err := link(h + 1)
		if err != nil {
			return 0, err
		}
		n.Right = int32(next)
		return link(next)
	}

	end, err := link(0)
	if err != nil {
		return nil, err
	}
	if end != len(nodes) {
		return nil, errors.Wrapf(errors.ErrCorruptModel, "%d trailing nodes", len(nodes)-end)
	}
	return nodes, nil
}

// jsonNode is the JSON form of a pre-order node record.
type jsonNode struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
}

type jsonTree struct {
	NFeatures int        `json:"n_features"`
	Nodes     []jsonNode `json:"nodes"`
}

// ExportWeights returns the fitted tree in the JSON weights schema.
func (t *DecisionTreeRegressor) ExportWeights() (*model.ModelWeights, error) {
	if err := t.RequireFitted(modelName, "ExportWeights", -1); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(t.jsonTree())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tree")
	}
	return &model.ModelWeights{
		ModelType:       modelName,
		Version:         model.FormatVersion,
		Hyperparameters: t.GetParams(),
		Payload:         payload,
		IsFitted:        true,
	}, nil
}

func (t *DecisionTreeRegressor) jsonTree() jsonTree {
	jt := jsonTree{NFeatures: t.NFeatures(), Nodes: make([]jsonNode, len(t.nodes))}
	for i, n := range t.nodes {
		jt.Nodes[i] = jsonNode{Leaf: n.Leaf, Feature: n.Feature, Threshold: n.Threshold, Value: n.Value}
	}
	return jt
}

// ImportWeights restores a tree from the JSON weights schema.
func (t *DecisionTreeRegressor) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}
	if w.ModelType != modelName {
		return errors.Wrapf(errors.ErrCorruptModel, "model type %s, want %s", w.ModelType, modelName)
	}
	var jt jsonTree
	if err := json.Unmarshal(w.Payload, &jt); err != nil {
		return errors.Wrap(errors.ErrCorruptModel, err.Error())
	}
	return t.importJSON(jt, w.Hyperparameters)
}

func (t *DecisionTreeRegressor) importJSON(jt jsonTree, params map[string]interface{}) error {
	flat := make([]Node, len(jt.Nodes))
	for i, n := range jt.Nodes {
		flat[i] = Node{Leaf: n.Leaf, Feature: n.Feature, Threshold: n.Threshold, Value: n.Value}
	}
	nodes, err := linkPreorder(flat, jt.NFeatures)
	if err != nil {
		return err
	}
	if err := t.SetParams(params); err != nil {
		return err
	}
	t.nodes = nodes
	t.SetFitted(jt.NFeatures)
	return nil
}
