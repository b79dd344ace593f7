package localsolver

import "github.com/refinencbf/localhjr/internal/grid"

// NeighborExpander grows a source set. The result is a superset of source.
type NeighborExpander interface {
	Expand(r *Result, source grid.Mask) (grid.Mask, error)
}

// SignedDistanceNeighbors adds every cell within Distance (grid cells) of the
// source set, wrapping around periodic dimensions. Distance 0 returns the
// source set unchanged.
type SignedDistanceNeighbors struct {
	Distance float64
}

func (n SignedDistanceNeighbors) Expand(r *Result, source grid.Mask) (grid.Mask, error) {
	return grid.ExpandByDistance(r.Grid(), source, n.Distance), nil
}

// Validate implements validator.
func (n SignedDistanceNeighbors) Validate() error {
	if !(n.Distance >= 0) {
		return invalidConfig("neighbor distance %g must be non-negative", n.Distance)
	}
	return nil
}
