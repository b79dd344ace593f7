package localsolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/hjr"
	"github.com/refinencbf/localhjr/internal/testutil"
)

// accCase is a scaled-down cruise control problem: avoid x3 outside [40, 60].
type accCase struct {
	setup   Setup
	avoid   grid.Mask
	reach   grid.Mask
	seed    grid.Mask
	initial grid.Table
}

func newACCCase(t *testing.T, shape grid.Shape) accCase {
	t.Helper()
	g, err := grid.New(grid.Domain{Lo: []float64{0, -20, 20}, Hi: []float64{1e3, 20, 80}}, shape)
	require.NoError(t, err)
	avoid := g.MaskFunc(func(x []float64) bool { return x[2] > 60 || x[2] < 40 })
	return accCase{
		setup:   Setup{Grid: g, Dynamics: dynamics.NewActiveCruiseControl()},
		avoid:   avoid,
		reach:   grid.NewMask(g.Shape()),
		seed:    avoid.Not(),
		initial: grid.SignedDistance(g, avoid.Not()),
	}
}

var (
	mapActive     = testutil.MapActive
	lowerBy       = testutil.LowerActive
	settleTowards = testutil.SettleTowards
	nanPropagator = testutil.NaNPropagator
)

func fakeOptions(p hjr.Propagator) Options {
	opts := DefaultOptions()
	opts.Propagator = p
	return opts
}

// checkInvariants asserts shape invariance and the per-iteration containment
// chain previous ⊇ pre-filtered ⊆ expanded ⊇ post-filtered.
func checkInvariants(t *testing.T, r *Result) {
	t.Helper()
	shape := r.Grid().Shape()
	previous := r.SeedSet()
	for n, it := range r.Iterations() {
		for _, m := range []grid.Mask{it.PreFiltered, it.Expanded, it.PostFiltered} {
			require.True(t, m.Shape().Equal(shape), "iteration %d: mask shape %s", n+1, m.Shape())
		}
		require.True(t, it.Values.Shape().Equal(shape), "iteration %d: values shape %s", n+1, it.Values.Shape())
		require.True(t, it.PreFiltered.SubsetOf(previous), "iteration %d: pre-filtered not within previous active set", n+1)
		require.True(t, it.PreFiltered.SubsetOf(it.Expanded), "iteration %d: pre-filtered not within expanded", n+1)
		require.True(t, it.PostFiltered.SubsetOf(it.Expanded), "iteration %d: post-filtered not within expanded", n+1)
		previous = it.PostFiltered
	}
}
