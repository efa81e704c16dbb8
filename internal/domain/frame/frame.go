// Package frame holds the small tabular input handed to predictors: named
// numeric columns over a gonum dense matrix.
package frame

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Frame is an immutable table of float64 values with named columns.
// Column labels are trimmed of surrounding whitespace on construction.
type Frame struct {
	columns []string
	index   map[string]int
	data    *mat.Dense
}

// New builds a frame from column labels and rows. Every row must have one
// value per column and at least one row is required.
func New(columns []string, rows ...[]float64) (*Frame, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrShape)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrShape)
	}

	f := &Frame{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty label", ErrShape, i)
		}
		if _, dup := f.index[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		f.columns[i] = name
		f.index[name] = i
	}

	values := make([]float64, 0, len(rows)*len(columns))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, r, len(row), len(columns))
		}
		values = append(values, row...)
	}
	f.data = mat.NewDense(len(rows), len(columns), values)
	return f, nil
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	r, _ := f.data.Dims()
	return r
}

// Columns returns a copy of the column labels in frame order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Has reports whether the frame carries the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[strings.TrimSpace(name)]
	return ok
}

// Row returns a copy of row i in frame column order.
func (f *Frame) Row(i int) []float64 {
	return mat.Row(nil, i, f.data)
}

// Select returns a rows×len(names) matrix holding the named columns in the
// requested order. The result does not share storage with the frame.
func (f *Frame) Select(names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no columns selected", ErrShape)
	}
	out := mat.NewDense(f.Rows(), len(names), nil)
	for j, n := range names {
		name := strings.TrimSpace(n)
		i, ok := f.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (have %s)", ErrMissingColumn, name, strings.Join(f.columns, ", "))
		}
		out.SetCol(j, mat.Col(nil, i, f.data))
	}
	return out, nil
}
