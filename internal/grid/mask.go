package grid

import "fmt"

// Mask marks a subset of grid cells. The zero value is an empty, shapeless mask.
//
// Masks returned by the solver stages are treated as immutable snapshots;
// the binary operations below always allocate a new mask.
type Mask struct {
	shape Shape
	cells []bool
}

// NewMask returns an all-false mask of the given shape.
func NewMask(shape Shape) Mask {
	return Mask{shape: shape.Clone(), cells: make([]bool, shape.Size())}
}

// FullMask returns an all-true mask of the given shape.
func FullMask(shape Shape) Mask {
	m := NewMask(shape)
	for i := range m.cells {
		m.cells[i] = true
	}
	return m
}

// MaskFromCells wraps a copy of cells, which must hold shape.Size() entries.
func MaskFromCells(shape Shape, cells []bool) (Mask, error) {
	if len(cells) != shape.Size() {
		return Mask{}, fmt.Errorf("%w: %d cells for shape %s", ErrShapeMismatch, len(cells), shape)
	}
	return Mask{shape: shape.Clone(), cells: append([]bool(nil), cells...)}, nil
}

// Shape returns the mask shape.
func (m Mask) Shape() Shape { return m.shape }

// Len returns the number of cells.
func (m Mask) Len() int { return len(m.cells) }

// Get reports whether cell i is set.
func (m Mask) Get(i int) bool { return m.cells[i] }

// Set marks cell i. Only use on masks the caller has just built.
func (m Mask) Set(i int, v bool) { m.cells[i] = v }

// Cells exposes the backing slice for read-only iteration.
func (m Mask) Cells() []bool { return m.cells }

// Count returns the number of set cells.
func (m Mask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no cell is set.
func (m Mask) IsEmpty() bool {
	for _, c := range m.cells {
		if c {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m Mask) Clone() Mask {
	return Mask{shape: m.shape.Clone(), cells: append([]bool(nil), m.cells...)}
}

// Not returns the complement.
func (m Mask) Not() Mask {
	out := NewMask(m.shape)
	for i, c := range m.cells {
		out.cells[i] = !c
	}
	return out
}

// And returns the intersection. It panics if the shapes differ.
func (m Mask) And(o Mask) Mask {
	m.mustMatch(o)
	out := NewMask(m.shape)
	for i := range m.cells {
		out.cells[i] = m.cells[i] && o.cells[i]
	}
	return out
}

// Or returns the union. It panics if the shapes differ.
func (m Mask) Or(o Mask) Mask {
	m.mustMatch(o)
	out := NewMask(m.shape)
	for i := range m.cells {
		out.cells[i] = m.cells[i] || o.cells[i]
	}
	return out
}

// AndNot returns cells set in m but not in o. It panics if the shapes differ.
func (m Mask) AndNot(o Mask) Mask {
	m.mustMatch(o)
	out := NewMask(m.shape)
	for i := range m.cells {
		out.cells[i] = m.cells[i] && !o.cells[i]
	}
	return out
}

// SubsetOf reports whether every set cell of m is also set in o.
func (m Mask) SubsetOf(o Mask) bool {
	if !m.shape.Equal(o.shape) {
		return false
	}
	for i, c := range m.cells {
		if c && !o.cells[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both masks have the same shape and cells.
func (m Mask) Equal(o Mask) bool {
	if !m.shape.Equal(o.shape) {
		return false
	}
	for i := range m.cells {
		if m.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

func (m Mask) mustMatch(o Mask) {
	if !m.shape.Equal(o.shape) {
		panic(fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, m.shape, o.shape))
	}
}
