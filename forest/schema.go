package forest

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/courtsideml/grove/pkg/errors"
)

// FeatureSchema is the immutable ordered feature-name list shared by fit and
// predict. It translates name-keyed feature vectors into the flat positional
// arrays trees operate on, and fails loudly on any mismatch instead of
// indexing blind.
type FeatureSchema struct {
	names []string
	index map[string]int
}

// NewFeatureSchema builds a schema from an explicit ordered name list.
func NewFeatureSchema(names []string) (*FeatureSchema, error) {
	if len(names) == 0 {
		return nil, errors.NewValueError("NewFeatureSchema", "no feature names")
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, errors.NewValidationError("feature_names", "empty feature name", i)
		}
		if _, dup := index[name]; dup {
			return nil, errors.NewValidationError("feature_names", "duplicate feature name", name)
		}
		index[name] = i
	}
	owned := make([]string, len(names))
	copy(owned, names)
	return &FeatureSchema{names: owned, index: index}, nil
}

// SchemaFromSample derives a schema from a single feature vector. The order is
// the sorted name order, which keeps the schema deterministic regardless of
// map iteration.
func SchemaFromSample(features map[string]float64) (*FeatureSchema, error) {
	if len(features) == 0 {
		return nil, errors.NewValueError("SchemaFromSample", "empty feature vector")
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	return NewFeatureSchema(names)
}

// Names returns a copy of the ordered feature names.
func (s *FeatureSchema) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Len returns the number of features.
func (s *FeatureSchema) Len() int {
	return len(s.names)
}

// Equal reports whether both schemas carry the same names in the same order.
func (s *FeatureSchema) Equal(other *FeatureSchema) bool {
	if other == nil || len(s.names) != len(other.names) {
		return false
	}
	for i, name := range s.names {
		if other.names[i] != name {
			return false
		}
	}
	return true
}

// Vectorize maps a name-keyed feature vector onto the schema order.
// Missing names and non-finite values are contract violations.
func (s *FeatureSchema) Vectorize(op string, features map[string]float64) ([]float64, error) {
	row := make([]float64, len(s.names))
	var missing []string
	for i, name := range s.names {
		v, ok := features[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewSchemaValueError(op, name, "value is not finite")
		}
		row[i] = v
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError(op, missing)
	}
	return row, nil
}

// MarshalJSON encodes the schema as its ordered name list.
func (s *FeatureSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.names)
}

// UnmarshalJSON decodes the schema from an ordered name list.
func (s *FeatureSchema) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	rebuilt, err := NewFeatureSchema(names)
	if err != nil {
		return err
	}
	*s = *rebuilt
	return nil
}

// GobEncode implements gob.GobEncoder via the JSON name-list form.
func (s *FeatureSchema) GobEncode() ([]byte, error) {
	return s.MarshalJSON()
}

// GobDecode implements gob.GobDecoder via the JSON name-list form.
func (s *FeatureSchema) GobDecode(data []byte) error {
	return s.UnmarshalJSON(data)
}

// Sample is one historical observation: a name-keyed feature vector and its
// continuous target.
type Sample struct {
	Features map[string]float64
	Target   float64
}

// Dataset is an ordered sequence of samples. Order matters: the tuner's
// train/test split is positional, typically chronological.
type Dataset []Sample

// SchemaFromDataset derives the feature schema from the first sample.
func SchemaFromDataset(ds Dataset) (*FeatureSchema, error) {
	if len(ds) == 0 {
		return nil, errors.ErrEmptyData
	}
	return SchemaFromSample(ds[0].Features)
}

// Split partitions the dataset positionally: the first trainFraction of the
// sequence becomes train, the remainder test. This approximates "train on
// past games, evaluate on future games" and is deliberately not randomized.
func (ds Dataset) Split(trainFraction float64) (train, test Dataset, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, errors.NewValidationError("train_fraction", "must be in (0, 1)", trainFraction)
	}
	cut := int(float64(len(ds)) * trainFraction)
	if cut < 1 || cut >= len(ds) {
		return nil, nil, errors.NewValueError("Dataset.Split", "dataset too small to split")
	}
	return ds[:cut], ds[cut:], nil
}

// Targets returns the target column.
func (ds Dataset) Targets() []float64 {
	targets := make([]float64, len(ds))
	for i, s := range ds {
		targets[i] = s.Target
	}
	return targets
}

// FeatureVectors returns the feature column maps in order.
func (ds Dataset) FeatureVectors() []map[string]float64 {
	vectors := make([]map[string]float64, len(ds))
	for i, s := range ds {
		vectors[i] = s.Features
	}
	return vectors
}

// Matrices vectorizes the dataset through the schema into a design matrix and
// a target vector. Targets must be finite.
func (ds Dataset) Matrices(schema *FeatureSchema) (*mat.Dense, *mat.VecDense, error) {
	if len(ds) == 0 {
		return nil, nil, errors.ErrEmptyData
	}
	X := mat.NewDense(len(ds), schema.Len(), nil)
	y := mat.NewVecDense(len(ds), nil)
	for i, s := range ds {
		row, err := schema.Vectorize("Dataset.Matrices", s.Features)
		if err != nil {
			return nil, nil, err
		}
		X.SetRow(i, row)
		if math.IsNaN(s.Target) || math.IsInf(s.Target, 0) {
			return nil, nil, errors.NewValueError("Dataset.Matrices", "target is not finite")
		}
		y.SetVec(i, s.Target)
	}
	return X, y, nil
}
