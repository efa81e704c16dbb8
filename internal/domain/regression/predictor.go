// Package regression implements the predictor families a model artifact can
// describe. Predictors are immutable after Build and safe for concurrent use.
package regression

import (
	"context"
	"fmt"

	"github.com/okian/battpredict/internal/domain/frame"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Predictor maps each row of a frame to one prediction.
type Predictor interface {
	// Predict returns one value per input row, in row order.
	Predict(ctx context.Context, in *frame.Frame) ([]float64, error)
	// Features lists the column labels the predictor reads, in model order.
	Features() []string
	Kind() Kind
}

// Build validates spec and returns the matching predictor.
func Build(spec Spec) (Predictor, error) {
	features, err := normalizeFeatures(spec.Features)
	if err != nil {
		return nil, err
	}
	b := base{kind: spec.Kind, features: features}

	switch spec.Kind {
	case KindLinear:
		l, err := newLinear(b, spec.Linear)
		if err != nil {
			return nil, err
		}
		return l, nil
	case KindTree:
		if spec.Tree == nil {
			return nil, fmt.Errorf("%w: kind tree requires a tree", ErrInvalidSpec)
		}
		if err := validateTree(*spec.Tree, len(features), "tree"); err != nil {
			return nil, err
		}
		return &ensemble{base: b, trees: []TreeSpec{*spec.Tree}, scale: 1}, nil
	case KindForest:
		if err := validateTrees(spec.Trees, len(features)); err != nil {
			return nil, err
		}
		return &ensemble{base: b, trees: spec.Trees, scale: 1 / float64(len(spec.Trees))}, nil
	case KindBoosting:
		if err := validateTrees(spec.Trees, len(features)); err != nil {
			return nil, err
		}
		lr := 1.0
		if spec.LearningRate != nil {
			lr = *spec.LearningRate
		}
		if !finite(lr) || lr <= 0 {
			return nil, fmt.Errorf("%w: learning_rate must be positive and finite", ErrInvalidSpec)
		}
		if !finite(spec.BaseScore) {
			return nil, fmt.Errorf("%w: base_score must be finite", ErrInvalidSpec)
		}
		return &ensemble{base: b, trees: spec.Trees, scale: lr, offset: spec.BaseScore}, nil
	case "":
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidSpec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

func validateTrees(trees []TreeSpec, nFeatures int) error {
	if len(trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidSpec)
	}
	for i, t := range trees {
		if err := validateTree(t, nFeatures, fmt.Sprintf("tree %d", i)); err != nil {
			return err
		}
	}
	return nil
}

type base struct {
	kind     Kind
	features []string
}

func (b base) Kind() Kind { return b.kind }

func (b base) Features() []string {
	out := make([]string, len(b.features))
	copy(out, b.features)
	return out
}

// inputs selects the model's feature columns from the frame.
func (b base) inputs(ctx context.Context, in *frame.Frame) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInference)
	}
	x, err := in.Select(b.features)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return x, nil
}

// linear computes intercept + X·β.
type linear struct {
	base
	intercept float64
	coef      *mat.VecDense
}

func newLinear(b base, spec *LinearSpec) (*linear, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: kind linear requires linear parameters", ErrInvalidSpec)
	}
	if len(spec.Coefficients) != len(b.features) {
		return nil, fmt.Errorf("%w: %d coefficients for %d features", ErrInvalidSpec, len(spec.Coefficients), len(b.features))
	}
	if !finite(spec.Intercept) {
		return nil, fmt.Errorf("%w: intercept must be finite", ErrInvalidSpec)
	}
	coef := make([]float64, len(spec.Coefficients))
	for i, c := range spec.Coefficients {
		if !finite(c) {
			return nil, fmt.Errorf("%w: coefficient %d must be finite", ErrInvalidSpec, i)
		}
		coef[i] = c
	}
	return &linear{base: b, intercept: spec.Intercept, coef: mat.NewVecDense(len(coef), coef)}, nil
}

func (l *linear) Predict(ctx context.Context, in *frame.Frame) ([]float64, error) {
	x, err := l.inputs(ctx, in)
	if err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	y := mat.NewVecDense(rows, nil)
	y.MulVec(x, l.coef)

	out := make([]float64, rows)
	for i := range out {
		out[i] = y.AtVec(i) + l.intercept
	}
	return out, nil
}

// ensemble covers single trees, forests and boosted trees:
// offset + scale * Σ tree(row).
type ensemble struct {
	base
	trees  []TreeSpec
	scale  float64
	offset float64
}

func (e *ensemble) Predict(ctx context.Context, in *frame.Frame) ([]float64, error) {
	x, err := e.inputs(ctx, in)
	if err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	leaves := make([]float64, len(e.trees))
	for r := 0; r < rows; r++ {
		row := x.RawRowView(r)
		for t := range e.trees {
			leaves[t] = walk(e.trees[t].Nodes, row)
		}
		out[r] = e.offset + e.scale*floats.Sum(leaves)
	}
	return out, nil
}

// walk follows splits from the root to a leaf. Build guarantees children
// index forward, so the loop terminates.
func walk(nodes []Node, row []float64) float64 {
	i := 0
	for !nodes[i].Leaf {
		n := nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return nodes[i].Value
}
