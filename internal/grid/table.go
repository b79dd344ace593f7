package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Table holds one float64 per grid cell, e.g. an approximation of the value function.
type Table struct {
	shape  Shape
	values []float64
}

// NewTable returns a zero-filled table of the given shape.
func NewTable(shape Shape) Table {
	return Table{shape: shape.Clone(), values: make([]float64, shape.Size())}
}

// TableFromValues wraps a copy of values, which must hold shape.Size() entries.
func TableFromValues(shape Shape, values []float64) (Table, error) {
	if len(values) != shape.Size() {
		return Table{}, fmt.Errorf("%w: %d values for shape %s", ErrShapeMismatch, len(values), shape)
	}
	return Table{shape: shape.Clone(), values: append([]float64(nil), values...)}, nil
}

// Shape returns the table shape.
func (t Table) Shape() Shape { return t.shape }

// Len returns the number of cells.
func (t Table) Len() int { return len(t.values) }

// At returns the value of cell i.
func (t Table) At(i int) float64 { return t.values[i] }

// Set writes cell i. Only use on tables the caller has just built.
func (t Table) Set(i int, v float64) { t.values[i] = v }

// Values exposes the backing slice for read-only iteration.
func (t Table) Values() []float64 { return t.values }

// Clone returns an independent copy.
func (t Table) Clone() Table {
	return Table{shape: t.shape.Clone(), values: append([]float64(nil), t.values...)}
}

// Min returns the smallest value.
func (t Table) Min() float64 {
	if len(t.values) == 0 {
		return math.NaN()
	}
	return floats.Min(t.values)
}

// Max returns the largest value.
func (t Table) Max() float64 {
	if len(t.values) == 0 {
		return math.NaN()
	}
	return floats.Max(t.values)
}

// FirstNonFinite returns the index of the first NaN or Inf value, or -1.
func (t Table) FirstNonFinite() int {
	for i, v := range t.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// Merge returns a copy of t with src's values adopted wherever mask is set.
func (t Table) Merge(mask Mask, src Table) Table {
	t.mustMatch(src.shape)
	t.mustMatch(mask.shape)
	out := t.Clone()
	for i, c := range mask.cells {
		if c {
			out.values[i] = src.values[i]
		}
	}
	return out
}

// Less marks cells where t is strictly less than o.
func (t Table) Less(o Table) Mask {
	t.mustMatch(o.shape)
	m := NewMask(t.shape)
	for i := range t.values {
		m.cells[i] = t.values[i] < o.values[i]
	}
	return m
}

// Close marks cells where |t-o| <= atol + rtol*|o|.
func (t Table) Close(o Table, atol, rtol float64) Mask {
	t.mustMatch(o.shape)
	m := NewMask(t.shape)
	for i := range t.values {
		m.cells[i] = math.Abs(t.values[i]-o.values[i]) <= atol+rtol*math.Abs(o.values[i])
	}
	return m
}

// NonNegative marks cells with value >= 0.
func (t Table) NonNegative() Mask {
	m := NewMask(t.shape)
	for i, v := range t.values {
		m.cells[i] = v >= 0
	}
	return m
}

// Equal reports whether both tables have the same shape and identical values.
func (t Table) Equal(o Table) bool {
	return t.shape.Equal(o.shape) && floats.Equal(t.values, o.values)
}

// Scale returns a copy of t multiplied by c.
func (t Table) Scale(c float64) Table {
	out := t.Clone()
	floats.Scale(c, out.values)
	return out
}

func (t Table) mustMatch(s Shape) {
	if !t.shape.Equal(s) {
		panic(fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, t.shape, s))
	}
}
