package hjr

import (
	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
)

// Propagator advances values from timeStart to timeTarget on the active
// cells. timeTarget < timeStart propagates backward in time. Implementations
// must be deterministic, return a table shaped like g, and leave cells
// outside active untouched.
type Propagator interface {
	Propagate(dyn dynamics.ControlAffine, g *grid.Grid, settings SolverSettings,
		values grid.Table, timeStart, timeTarget float64, active grid.Mask) (grid.Table, error)
}

// PropagatorFunc adapts a function to the Propagator interface.
type PropagatorFunc func(dyn dynamics.ControlAffine, g *grid.Grid, settings SolverSettings,
	values grid.Table, timeStart, timeTarget float64, active grid.Mask) (grid.Table, error)

// Propagate calls f.
func (f PropagatorFunc) Propagate(dyn dynamics.ControlAffine, g *grid.Grid, settings SolverSettings,
	values grid.Table, timeStart, timeTarget float64, active grid.Mask) (grid.Table, error) {
	return f(dyn, g, settings, values, timeStart, timeTarget, active)
}
