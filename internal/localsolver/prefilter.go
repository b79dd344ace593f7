package localsolver

import "github.com/refinencbf/localhjr/internal/grid"

// ActiveSetPreFilter narrows the previous active set before expansion. The
// returned mask is a subset of r.LastActiveSet().
type ActiveSetPreFilter interface {
	Filter(r *Result) (grid.Mask, error)
}

// NoFilter passes the active set through unchanged.
type NoFilter struct{}

func (NoFilter) Filter(r *Result) (grid.Mask, error) {
	return r.LastActiveSet().Clone(), nil
}

// FilterWhereFarFromZeroLevelset keeps only active cells within
// BoundaryDistance (grid cells) of the zero level set of the recent values.
type FilterWhereFarFromZeroLevelset struct {
	BoundaryDistance float64
}

func (f FilterWhereFarFromZeroLevelset) Filter(r *Result) (grid.Mask, error) {
	near := grid.NearZeroLevelset(r.Grid(), r.RecentValues(), f.BoundaryDistance)
	return r.LastActiveSet().And(near), nil
}

// Validate implements validator.
func (f FilterWhereFarFromZeroLevelset) Validate() error {
	if !(f.BoundaryDistance >= 0) {
		return invalidConfig("boundary distance %g must be non-negative", f.BoundaryDistance)
	}
	return nil
}
