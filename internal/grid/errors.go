package grid

import "errors"

var (
	// ErrShapeMismatch indicates a mask or table whose shape differs from the grid.
	ErrShapeMismatch = errors.New("grid: shape mismatch")
	// ErrEmptyShape indicates a shape with no dimensions or a non-positive extent.
	ErrEmptyShape = errors.New("grid: shape must have at least one dimension and positive extents")
	// ErrInvalidDomain indicates bounds that do not match the shape or are not increasing.
	ErrInvalidDomain = errors.New("grid: invalid domain bounds")
	// ErrPeriodicDim indicates a periodic dimension index outside the grid.
	ErrPeriodicDim = errors.New("grid: periodic dimension out of range")
)
