// Package classifier holds the crop classifier: a random forest of CART
// trees serialized as JSON, plus the offline trainer that produces it.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FormatVersion is written into every model artifact.
const FormatVersion = 1

// FeatureNames is the feature order the forest is trained and queried with.
var FeatureNames = []string{"temperature", "humidity", "ph", "rainfall"}

// Classifier errors.
var (
	ErrInvalidModel   = errors.New("invalid classifier model")
	ErrFeatureCount   = errors.New("unexpected feature count")
	ErrNoTrainingData = errors.New("no training data")
)

// Classifier maps a feature vector to a class label.
type Classifier interface {
	Predict(features []float64) (string, error)
}

// Node is one node of a decision tree. A node with Left < 0 is a leaf.
// Samples go left when features[Feature] <= Threshold.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Class     int     `json:"c"`
}

// IsLeaf reports whether n is a leaf.
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a flattened decision tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a trained random forest. It is immutable after loading and safe
// for concurrent use.
type Forest struct {
	Version   int       `json:"version"`
	Features  []string  `json:"features"`
	Classes   []string  `json:"classes"`
	Trees     []Tree    `json:"trees"`
	TrainedAt time.Time `json:"trained_at"`
	Accuracy  float64   `json:"holdout_accuracy"`
}

// Load reads and validates a forest artifact.
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save writes the forest to path as JSON.
func (f *Forest) Save(path string) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	return nil
}

// Validate checks the structural integrity of the forest.
func (f *Forest) Validate() error {
	if f.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidModel, f.Version)
	}
	if len(f.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidModel)
	}
	if len(f.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidModel)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidModel)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidModel, ti)
		}
		for ni, n := range t.Nodes {
			if n.Class < 0 || n.Class >= len(f.Classes) {
				return fmt.Errorf("%w: tree %d node %d: class %d out of range", ErrInvalidModel, ti, ni, n.Class)
			}
			if n.IsLeaf() {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return fmt.Errorf("%w: tree %d node %d: feature %d out of range", ErrInvalidModel, ti, ni, n.Feature)
			}
			// children always follow their parent, so descent terminates
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d: bad child index", ErrInvalidModel, ti, ni)
			}
		}
	}
	return nil
}

// Predict returns the majority vote of the trees. Ties go to the class
// listed first.
func (f *Forest) Predict(features []float64) (string, error) {
	if len(features) != len(f.Features) {
		return "", fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), len(f.Features))
	}

	votes := make([]int, len(f.Classes))
	for i := range f.Trees {
		votes[f.Trees[i].predict(features)]++
	}
	return f.Classes[argmax(votes)], nil
}

func (t *Tree) predict(features []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Class
		}
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
