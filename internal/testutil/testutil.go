// Package testutil provides shared test fixtures for the solver packages:
// stand-in propagators that transform the active cells in a known way, so
// loop behaviour can be tested without running a real PDE scheme.
package testutil

import (
	"math"
	"testing"

	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/hjr"
)

// MapActive returns a propagator that applies fn to every active cell and
// leaves the rest untouched.
func MapActive(fn func(i int, v float64) float64) hjr.PropagatorFunc {
	return func(dyn dynamics.ControlAffine, g *grid.Grid, s hjr.SolverSettings,
		values grid.Table, t0, t1 float64, active grid.Mask) (grid.Table, error) {
		out := values.Clone()
		for i, c := range active.Cells() {
			if c {
				out.Set(i, fn(i, values.At(i)))
			}
		}
		return out, nil
	}
}

// LowerActive lowers every active cell by delta per call.
func LowerActive(delta float64) hjr.PropagatorFunc {
	return MapActive(func(_ int, v float64) float64 { return v - delta })
}

// SettleTowards halves the distance to target on every call.
func SettleTowards(target grid.Table) hjr.PropagatorFunc {
	return MapActive(func(i int, v float64) float64 { return v + 0.5*(target.At(i)-v) })
}

// NaNPropagator poisons every active cell.
func NaNPropagator() hjr.PropagatorFunc {
	return MapActive(func(int, float64) float64 { return math.NaN() })
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
