package grid

import (
	"fmt"
	"math"
	"sort"
)

// Domain is the axis-aligned box covered by a grid.
type Domain struct {
	Lo []float64 `json:"lo"`
	Hi []float64 `json:"hi"`
}

// Spec is the serialisable description of a Grid.
type Spec struct {
	Domain       Domain `json:"domain"`
	Shape        Shape  `json:"shape"`
	PeriodicDims []int  `json:"periodic_dims,omitempty"`
}

// Grid is an immutable N-dimensional lattice over a bounded domain.
// It is shared read-only by every stage of a solve.
type Grid struct {
	shape    Shape
	strides  []int
	domain   Domain
	spacings []float64
	periodic []bool
	coords   [][]float64
}

// New builds a grid over domain with the given shape. Non-periodic dimensions
// place cells on both bounds; periodic dimensions treat hi as the image of lo.
func New(domain Domain, shape Shape, periodicDims ...int) (*Grid, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	n := len(shape)
	if len(domain.Lo) != n || len(domain.Hi) != n {
		return nil, fmt.Errorf("%w: bounds have %d/%d entries for %d dimensions",
			ErrInvalidDomain, len(domain.Lo), len(domain.Hi), n)
	}
	periodic := make([]bool, n)
	for _, d := range periodicDims {
		if d < 0 || d >= n {
			return nil, fmt.Errorf("%w: %d", ErrPeriodicDim, d)
		}
		periodic[d] = true
	}

	g := &Grid{
		shape:    shape.Clone(),
		strides:  shape.Strides(),
		domain:   Domain{Lo: append([]float64(nil), domain.Lo...), Hi: append([]float64(nil), domain.Hi...)},
		spacings: make([]float64, n),
		periodic: periodic,
		coords:   make([][]float64, n),
	}
	for d := 0; d < n; d++ {
		lo, hi := domain.Lo[d], domain.Hi[d]
		if !(hi > lo) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return nil, fmt.Errorf("%w: dimension %d has lo=%g hi=%g", ErrInvalidDomain, d, lo, hi)
		}
		cells := shape[d]
		switch {
		case periodic[d]:
			g.spacings[d] = (hi - lo) / float64(cells)
		case cells == 1:
			g.spacings[d] = hi - lo
		default:
			g.spacings[d] = (hi - lo) / float64(cells-1)
		}
		vec := make([]float64, cells)
		for i := range vec {
			vec[i] = lo + float64(i)*g.spacings[d]
		}
		g.coords[d] = vec
	}
	return g, nil
}

// FromSpec rebuilds a grid from its serialisable description.
func FromSpec(s Spec) (*Grid, error) {
	return New(s.Domain, s.Shape, s.PeriodicDims...)
}

// Spec returns the serialisable description of g.
func (g *Grid) Spec() Spec {
	return Spec{
		Domain:       Domain{Lo: append([]float64(nil), g.domain.Lo...), Hi: append([]float64(nil), g.domain.Hi...)},
		Shape:        g.shape.Clone(),
		PeriodicDims: g.PeriodicDims(),
	}
}

// Shape returns the grid shape. Callers must not modify it.
func (g *Grid) Shape() Shape { return g.shape }

// NumDims returns the number of state dimensions.
func (g *Grid) NumDims() int { return len(g.shape) }

// Size returns the number of cells.
func (g *Grid) Size() int { return g.shape.Size() }

// Domain returns a copy of the grid bounds.
func (g *Grid) Domain() Domain { return g.Spec().Domain }

// Spacing returns the cell spacing along dim.
func (g *Grid) Spacing(dim int) float64 { return g.spacings[dim] }

// Periodic reports whether dim wraps around.
func (g *Grid) Periodic(dim int) bool { return g.periodic[dim] }

// PeriodicDims lists the periodic dimensions in ascending order.
func (g *Grid) PeriodicDims() []int {
	var dims []int
	for d, p := range g.periodic {
		if p {
			dims = append(dims, d)
		}
	}
	sort.Ints(dims)
	return dims
}

// CoordinateVector returns the cell coordinates along dim. Callers must not modify it.
func (g *Grid) CoordinateVector(dim int) []float64 { return g.coords[dim] }

// State writes the continuous state of cell idx into dst.
func (g *Grid) State(idx int, dst []float64) []float64 {
	if len(dst) < len(g.shape) {
		dst = make([]float64, len(g.shape))
	}
	for d := len(g.shape) - 1; d >= 0; d-- {
		i := idx % g.shape[d]
		idx /= g.shape[d]
		dst[d] = g.coords[d][i]
	}
	return dst[:len(g.shape)]
}

// NearestIndex maps a continuous state to the flat index of the closest cell.
// Periodic dimensions wrap; other dimensions clamp to the boundary cell.
func (g *Grid) NearestIndex(x []float64) (int, error) {
	if len(x) != len(g.shape) {
		return 0, fmt.Errorf("%w: state has %d entries, grid has %d dimensions", ErrShapeMismatch, len(x), len(g.shape))
	}
	idx := 0
	for d, v := range x {
		n := g.shape[d]
		i := int(math.Round((v - g.domain.Lo[d]) / g.spacings[d]))
		if g.periodic[d] {
			i = ((i % n) + n) % n
		} else if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		idx += i * g.strides[d]
	}
	return idx, nil
}

// Neighbor returns the flat index offset cells away from idx along dim.
// ok is false when the neighbour falls outside a non-periodic dimension.
func (g *Grid) Neighbor(idx, dim, offset int) (int, bool) {
	n := g.shape[dim]
	stride := g.strides[dim]
	i := (idx / stride) % n
	j := i + offset
	if j < 0 || j >= n {
		if !g.periodic[dim] {
			return 0, false
		}
		j = ((j % n) + n) % n
	}
	return idx + (j-i)*stride, true
}

// CheckMask reports ErrShapeMismatch when m is not shaped like g.
func (g *Grid) CheckMask(m Mask) error {
	if !m.Shape().Equal(g.shape) {
		return fmt.Errorf("%w: mask %s, grid %s", ErrShapeMismatch, m.Shape(), g.shape)
	}
	return nil
}

// CheckTable reports ErrShapeMismatch when t is not shaped like g.
func (g *Grid) CheckTable(t Table) error {
	if !t.Shape().Equal(g.shape) {
		return fmt.Errorf("%w: table %s, grid %s", ErrShapeMismatch, t.Shape(), g.shape)
	}
	return nil
}

// MaskFunc builds a mask by evaluating pred at every cell state.
func (g *Grid) MaskFunc(pred func(x []float64) bool) Mask {
	m := NewMask(g.shape)
	x := make([]float64, len(g.shape))
	for i := range m.cells {
		m.cells[i] = pred(g.State(i, x))
	}
	return m
}

// TableFunc builds a value table by evaluating fn at every cell state.
func (g *Grid) TableFunc(fn func(x []float64) float64) Table {
	t := NewTable(g.shape)
	x := make([]float64, len(g.shape))
	for i := range t.values {
		t.values[i] = fn(g.State(i, x))
	}
	return t
}
