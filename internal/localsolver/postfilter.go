package localsolver

import "github.com/refinencbf/localhjr/internal/grid"

// ActiveSetPostFilter selects the next active set from the stepped values.
// The returned mask is a subset of expanded.
type ActiveSetPostFilter interface {
	Filter(r *Result, preFiltered, expanded grid.Mask, next grid.Table) (grid.Mask, error)
}

// RemoveWhereUnchanged drops cells whose value moved by no more than
// Atol + Rtol*|previous|.
type RemoveWhereUnchanged struct {
	Atol float64
	Rtol float64
}

func (f RemoveWhereUnchanged) Filter(r *Result, preFiltered, expanded grid.Mask, next grid.Table) (grid.Mask, error) {
	if err := r.Grid().CheckTable(next); err != nil {
		return grid.Mask{}, err
	}
	unchanged := next.Close(r.RecentValues(), f.Atol, f.Rtol)
	return expanded.AndNot(unchanged), nil
}

// Validate implements validator.
func (f RemoveWhereUnchanged) Validate() error {
	if !(f.Atol >= 0) || !(f.Rtol >= 0) {
		return invalidConfig("tolerances atol=%g rtol=%g must be non-negative", f.Atol, f.Rtol)
	}
	return nil
}
