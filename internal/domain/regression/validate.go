package regression

import (
	"fmt"
	"math"
	"strings"
)

// normalizeFeatures trims labels and rejects empty or duplicate names.
func normalizeFeatures(features []string) ([]string, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidSpec)
	}
	out := make([]string, len(features))
	seen := make(map[string]struct{}, len(features))
	for i, f := range features {
		name := strings.TrimSpace(f)
		if name == "" {
			return nil, fmt.Errorf("%w: feature %d has an empty name", ErrInvalidSpec, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrInvalidSpec, name)
		}
		seen[name] = struct{}{}
		out[i] = name
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validateTree checks that every split references a known feature and that
// children always sit after their parent, which rules out cycles.
func validateTree(t TreeSpec, nFeatures int, label string) error {
	n := len(t.Nodes)
	if n == 0 {
		return fmt.Errorf("%w: %s has no nodes", ErrInvalidSpec, label)
	}
	for i, node := range t.Nodes {
		if node.Leaf {
			if !finite(node.Value) {
				return fmt.Errorf("%w: %s node %d has a non-finite value", ErrInvalidSpec, label, i)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= nFeatures {
			return fmt.Errorf("%w: %s node %d splits on feature %d, have %d features", ErrInvalidSpec, label, i, node.Feature, nFeatures)
		}
		if !finite(node.Threshold) {
			return fmt.Errorf("%w: %s node %d has a non-finite threshold", ErrInvalidSpec, label, i)
		}
		for _, child := range []int{node.Left, node.Right} {
			if child <= i || child >= n {
				return fmt.Errorf("%w: %s node %d has child %d out of range (%d, %d)", ErrInvalidSpec, label, i, child, i, n)
			}
		}
	}
	return nil
}
