package forest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/courtsideml/grove/pkg/errors"
)

// modelFormatName tags serialized models so foreign JSON is rejected early.
const modelFormatName = "grove.forest"

// modelFormatVersion is bumped on breaking changes to the on-disk layout.
const modelFormatVersion = "v1"

// JSONModel is the on-disk representation of a fitted forest: the ordered
// feature schema, the hyperparameters, and every tree as nested split-rule
// records. A decoded model predicts identically to the forest that produced it.
type JSONModel struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	FeatureNames []string   `json:"feature_names"`
	Config       Config     `json:"config"`
	NumTrees     int        `json:"num_trees"`
	Trees        []JSONTree `json:"trees"`
}

// JSONTree is one serialized tree.
type JSONTree struct {
	TreeIndex int           `json:"tree_index"`
	NumLeaves int           `json:"num_leaves"`
	Root      *JSONTreeNode `json:"tree_structure"`
}

// JSONTreeNode is a nested node record: either a split (feature name,
// threshold, two children) or a leaf (value, count).
type JSONTreeNode struct {
	// Internal node fields
	SplitFeature string        `json:"split_feature,omitempty"`
	Threshold    float64       `json:"threshold,omitempty"`
	LeftChild    *JSONTreeNode `json:"left_child,omitempty"`
	RightChild   *JSONTreeNode `json:"right_child,omitempty"`

	// Leaf node fields
	LeafValue *float64 `json:"leaf_value,omitempty"`
	LeafCount int      `json:"leaf_count,omitempty"`
}

// Encode serializes a fitted forest to JSON.
func (f *Forest) Encode() ([]byte, error) {
	if len(f.Trees) == 0 {
		return nil, errors.NewNotFittedError("Forest", "Encode")
	}
	names := f.Schema.Names()
	out := JSONModel{
		Name:         modelFormatName,
		Version:      modelFormatVersion,
		FeatureNames: names,
		Config:       f.Config,
		NumTrees:     len(f.Trees),
		Trees:        make([]JSONTree, len(f.Trees)),
	}
	for i := range f.Trees {
		root, err := nestNode(&f.Trees[i], 0, names)
		if err != nil {
			return nil, err
		}
		out.Trees[i] = JSONTree{
			TreeIndex: i,
			NumLeaves: f.Trees[i].NumLeaves,
			Root:      root,
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// nestNode converts the flat node array into nested records, resolving split
// feature indexes to schema names.
func nestNode(tree *Tree, nodeID int, names []string) (*JSONTreeNode, error) {
	if nodeID < 0 || nodeID >= len(tree.Nodes) {
		return nil, errors.Newf("forest: corrupt tree: node id %d out of range", nodeID)
	}
	node := &tree.Nodes[nodeID]
	if node.IsLeaf() {
		v := node.LeafValue
		return &JSONTreeNode{LeafValue: &v, LeafCount: node.LeafCount}, nil
	}
	if node.SplitFeature < 0 || node.SplitFeature >= len(names) {
		return nil, errors.Newf("forest: corrupt tree: split feature %d out of range", node.SplitFeature)
	}
	left, err := nestNode(tree, node.LeftChild, names)
	if err != nil {
		return nil, err
	}
	right, err := nestNode(tree, node.RightChild, names)
	if err != nil {
		return nil, err
	}
	return &JSONTreeNode{
		SplitFeature: names[node.SplitFeature],
		Threshold:    node.Threshold,
		LeftChild:    left,
		RightChild:   right,
	}, nil
}

// Decode deserializes a forest previously produced by Encode.
func Decode(data []byte) (*Forest, error) {
	var in JSONModel
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "forest: failed to parse model JSON")
	}
	if in.Name != modelFormatName {
		return nil, errors.Newf("forest: unexpected model format %q", in.Name)
	}
	if in.Version != modelFormatVersion {
		return nil, errors.Newf("forest: unsupported model version %q", in.Version)
	}
	schema, err := NewFeatureSchema(in.FeatureNames)
	if err != nil {
		return nil, err
	}

	f := &Forest{
		Schema: schema,
		Config: in.Config.withDefaults(),
		Trees:  make([]Tree, len(in.Trees)),
	}
	for i, jt := range in.Trees {
		tree := Tree{NumLeaves: jt.NumLeaves}
		if _, err := flattenNode(&tree, jt.Root, schema); err != nil {
			return nil, err
		}
		f.Trees[i] = tree
	}
	return f, nil
}

// flattenNode rebuilds the flat node array from nested records and returns
// the index the node was placed at.
func flattenNode(tree *Tree, jn *JSONTreeNode, schema *FeatureSchema) (int, error) {
	if jn == nil {
		return -1, errors.New("forest: corrupt model: missing node record")
	}
	nodeIdx := len(tree.Nodes)

	if jn.LeafValue != nil {
		tree.Nodes = append(tree.Nodes, leafNode(nodeIdx, *jn.LeafValue, jn.LeafCount))
		return nodeIdx, nil
	}

	feature, ok := schema.index[jn.SplitFeature]
	if !ok {
		return -1, errors.Newf("forest: corrupt model: unknown split feature %q", jn.SplitFeature)
	}
	tree.Nodes = append(tree.Nodes, Node{
		NodeID:       nodeIdx,
		SplitFeature: feature,
		Threshold:    jn.Threshold,
		LeftChild:    -1,
		RightChild:   -1,
	})

	left, err := flattenNode(tree, jn.LeftChild, schema)
	if err != nil {
		return -1, err
	}
	right, err := flattenNode(tree, jn.RightChild, schema)
	if err != nil {
		return -1, err
	}
	tree.Nodes[nodeIdx].LeftChild = left
	tree.Nodes[nodeIdx].RightChild = right
	return nodeIdx, nil
}

// SaveToFile writes the serialized forest to disk.
func (f *Forest) SaveToFile(path string) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), data, 0o600)
}

// LoadFromFile reads a serialized forest from disk.
func LoadFromFile(path string) (*Forest, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, errors.Newf("forest: path traversal detected in file path: %s", path)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "forest: failed to read model file")
	}
	return Decode(data)
}

// LoadModel loads a serialized forest into the regressor, restoring the
// fitted state and hyperparameters.
func (fr *ForestRegressor) LoadModel(path string) error {
	forest, err := LoadFromFile(path)
	if err != nil {
		return err
	}
	fr.Model = forest
	fr.NumTrees = forest.Config.NumTrees
	fr.MaxDepth = forest.Config.MaxDepth
	fr.MinSamplesSplit = forest.Config.MinSamplesSplit
	fr.MinSamplesLeaf = forest.Config.MinSamplesLeaf
	fr.MaxFeatures = forest.Config.MaxFeatures
	fr.FeatureFraction = forest.Config.FeatureFraction
	fr.MaxThresholds = forest.Config.MaxThresholds
	fr.RandomState = forest.Config.Seed
	fr.FeatureNames = forest.Schema.Names()
	fr.SetFitted()
	return nil
}

// SaveModel writes the regressor's fitted forest to disk.
func (fr *ForestRegressor) SaveModel(path string) error {
	if !fr.IsFitted() {
		return errors.NewNotFittedError("ForestRegressor", "SaveModel")
	}
	return fr.Model.SaveToFile(path)
}
