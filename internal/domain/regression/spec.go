package regression

// Kind names a predictor family.
type Kind string

// Supported predictor families.
const (
	KindLinear   Kind = "linear"
	KindTree     Kind = "tree"
	KindForest   Kind = "forest"
	KindBoosting Kind = "boosting"
)

// Spec is the decoded form of a model artifact. Field tags match the keys of
// the JSON/YAML document.
type Spec struct {
	Kind     Kind     `koanf:"kind" json:"kind"`
	Version  int      `koanf:"version" json:"version,omitempty"`
	Target   string   `koanf:"target" json:"target,omitempty"`
	Features []string `koanf:"features" json:"features"`

	// kind=linear
	Linear *LinearSpec `koanf:"linear" json:"linear,omitempty"`

	// kind=tree
	Tree *TreeSpec `koanf:"tree" json:"tree,omitempty"`

	// kind=forest|boosting
	Trees        []TreeSpec `koanf:"trees" json:"trees,omitempty"`
	BaseScore    float64    `koanf:"base_score" json:"base_score,omitempty"`
	LearningRate *float64   `koanf:"learning_rate" json:"learning_rate,omitempty"`
}

// LinearSpec holds an intercept and one coefficient per feature, in feature order.
type LinearSpec struct {
	Intercept    float64   `koanf:"intercept" json:"intercept"`
	Coefficients []float64 `koanf:"coefficients" json:"coefficients"`
}

// TreeSpec is a flattened regression tree; node 0 is the root.
type TreeSpec struct {
	Nodes []Node `koanf:"nodes" json:"nodes"`
}

// Node is either a split (row[Feature] <= Threshold goes Left, else Right)
// or a leaf carrying Value. Feature indexes into Spec.Features.
type Node struct {
	Feature   int     `koanf:"feature" json:"feature"`
	Threshold float64 `koanf:"threshold" json:"threshold"`
	Left      int     `koanf:"left" json:"left"`
	Right     int     `koanf:"right" json:"right"`
	Leaf      bool    `koanf:"leaf" json:"leaf"`
	Value     float64 `koanf:"value" json:"value"`
}

// TreeCount returns how many trees the spec carries.
func (s Spec) TreeCount() int {
	switch s.Kind {
	case KindTree:
		if s.Tree != nil {
			return 1
		}
	case KindForest, KindBoosting:
		return len(s.Trees)
	}
	return 0
}
