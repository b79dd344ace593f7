package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape is the per-dimension extent of a grid, mask or table.
type Shape []int

// Size returns the total number of cells.
func (s Shape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical extents.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Validate checks the shape has at least one dimension and positive extents.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return ErrEmptyShape
	}
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d has extent %d", ErrEmptyShape, i, d)
		}
	}
	return nil
}

// Strides returns row-major strides (last dimension is contiguous).
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// Ravel converts a multi-index to a flat row-major index.
func (s Shape) Ravel(multi []int) int {
	idx := 0
	for i, m := range multi {
		idx = idx*s[i] + m
	}
	return idx
}

// Unravel converts a flat index into dst (allocated when nil or too short).
func (s Shape) Unravel(idx int, dst []int) []int {
	if len(dst) < len(s) {
		dst = make([]int, len(s))
	}
	for i := len(s) - 1; i >= 0; i-- {
		dst[i] = idx % s[i]
		idx /= s[i]
	}
	return dst[:len(s)]
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// ParseShape parses a comma-separated list such as "3,201,201".
func ParseShape(str string) (Shape, error) {
	str = strings.Trim(strings.TrimSpace(str), "()")
	if str == "" {
		return nil, ErrEmptyShape
	}
	parts := strings.Split(str, ",")
	s := make(Shape, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid shape extent %q: %w", p, err)
		}
		s = append(s, v)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
