package localsolver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refinencbf/localhjr/internal/config"
	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/hjr"
	"github.com/refinencbf/localhjr/internal/timeutil"
)

func TestNewSolver_Validation(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	flat, err := grid.New(grid.Domain{Lo: []float64{0, 0}, Hi: []float64{1, 1}}, grid.Shape{4, 4})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Options, *Setup, *grid.Mask)
		want   error
	}{
		{"zero time step", func(o *Options, _ *Setup, _ *grid.Mask) { o.TimeStep = 0 }, ErrInvalidConfig},
		{"negative neighbor distance", func(o *Options, _ *Setup, _ *grid.Mask) { o.NeighborDistance = -1 }, ErrInvalidConfig},
		{"zero max iterations", func(o *Options, _ *Setup, _ *grid.Mask) { o.MaxIterations = 0 }, ErrInvalidConfig},
		{"negative atol", func(o *Options, _ *Setup, _ *grid.Mask) { o.Atol = -1 }, ErrInvalidConfig},
		{"bad accuracy", func(o *Options, _ *Setup, _ *grid.Mask) { o.Settings.Accuracy = "ultra" }, ErrInvalidConfig},
		{"avoid shape", func(_ *Options, _ *Setup, avoid *grid.Mask) { *avoid = grid.NewMask(grid.Shape{3, 9}) }, grid.ErrShapeMismatch},
		{"dimension mismatch", func(_ *Options, s *Setup, _ *grid.Mask) { s.Grid = flat }, ErrInvalidConfig},
		{"no dynamics", func(_ *Options, s *Setup, _ *grid.Mask) { s.Dynamics = nil }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fakeOptions(lowerBy(1))
			setup := c.setup
			avoid := c.avoid
			tt.mutate(&opts, &setup, &avoid)
			_, err := AsClassicSolver(setup, avoid, c.reach, opts)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNewSolver_MissingParts(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	base := Parts{
		Setup:         c.setup,
		AvoidSet:      c.avoid,
		ReachSet:      c.reach,
		PreFilter:     NoFilter{},
		Expander:      SignedDistanceNeighbors{Distance: 1},
		Stepper:       ClassicStepper{Propagation{Propagator: lowerBy(1), Settings: hjr.DefaultSettings(), TimeStep: -0.1}},
		PostFilter:    RemoveWhereUnchanged{Atol: 1e-3, Rtol: 1e-3},
		BreakCriteria: NewBreakCriteriaChecker(MaxIterations{Limit: 3}),
	}
	_, err := NewSolver(base)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Parts)
	}{
		{"pre-filter", func(p *Parts) { p.PreFilter = nil }},
		{"expander", func(p *Parts) { p.Expander = nil }},
		{"stepper", func(p *Parts) { p.Stepper = nil }},
		{"post-filter", func(p *Parts) { p.PostFilter = nil }},
		{"break criteria", func(p *Parts) { p.BreakCriteria = nil }},
		{"unbounded criteria", func(p *Parts) { p.BreakCriteria = NewBreakCriteriaChecker(PostFilteredActiveSetEmpty{}) }},
		{"no propagator", func(p *Parts) { p.Stepper = ClassicStepper{Propagation{Settings: hjr.DefaultSettings(), TimeStep: -0.1}} }},
		{"negative boundary distance", func(p *Parts) { p.PreFilter = FilterWhereFarFromZeroLevelset{BoundaryDistance: -1} }},
		{"zero budget", func(p *Parts) {
			p.BreakCriteria = NewBreakCriteriaChecker(MaxIterations{Limit: 3}, WallClockBudget{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewSolver(p)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestSolve_ShapeMismatchBeforeAnyIteration(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	calls := 0
	prop := hjr.PropagatorFunc(func(dyn dynamics.ControlAffine, g *grid.Grid, s hjr.SolverSettings,
		values grid.Table, t0, t1 float64, active grid.Mask) (grid.Table, error) {
		calls++
		return values, nil
	})
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, fakeOptions(prop))
	require.NoError(t, err)

	_, err = solver.Solve(grid.NewMask(grid.Shape{3, 9, 8}), c.initial)
	assert.True(t, errors.Is(err, grid.ErrShapeMismatch))
	_, err = solver.Solve(c.seed, grid.NewTable(grid.Shape{9, 9, 3}))
	assert.True(t, errors.Is(err, grid.ErrShapeMismatch))
	assert.Zero(t, calls)
}

func TestSolve_ConvergesToEmptyActiveSet(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, fakeOptions(settleTowards(c.initial.Scale(0.5))))
	require.NoError(t, err)

	r, err := solver.Solve(c.seed, c.initial)
	require.NoError(t, err)

	checkInvariants(t, r)
	assert.Equal(t, "post_filtered_active_set_empty", r.StopReason)
	assert.True(t, r.LastActiveSet().IsEmpty())
	assert.Less(t, r.NumIterations(), 100)
	assert.NotEmpty(t, r.ID)

	// converged values sit within tolerance of the target
	target := c.initial.Scale(0.5)
	for i := 0; i < target.Len(); i++ {
		assert.InDelta(t, target.At(i), r.RecentValues().At(i), 0.05, "cell %d", i)
	}
}

func TestSolve_StopsAtMaxIterations(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	for _, k := range []int{1, 2, 7} {
		opts := fakeOptions(lowerBy(1))
		opts.MaxIterations = k
		solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, opts)
		require.NoError(t, err)

		r, err := solver.Solve(c.seed, c.initial)
		require.NoError(t, err)
		assert.Equal(t, k, r.NumIterations())
		assert.Equal(t, "max_iterations", r.StopReason)
		checkInvariants(t, r)
	}
}

func TestSolve_RecentValuesTrackLastIteration(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	opts := fakeOptions(lowerBy(1))
	opts.MaxIterations = 3
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, opts)
	require.NoError(t, err)

	r, err := solver.Solve(c.seed, c.initial)
	require.NoError(t, err)

	its := r.Iterations()
	require.Len(t, its, 3)
	assert.True(t, r.RecentValues().Equal(its[2].Values))
	assert.True(t, r.InitialValues().Equal(c.initial))
	assert.True(t, r.AvoidSet().Equal(c.avoid))
	assert.True(t, r.ReachSet().Equal(c.reach))
	assert.True(t, r.SeedSet().Equal(c.seed))

	// the first iteration lowers exactly the expanded seed
	want := grid.ExpandByDistance(c.setup.Grid, c.seed, 1)
	assert.True(t, its[0].Expanded.Equal(want))
	for i := 0; i < c.initial.Len(); i++ {
		if want.Get(i) {
			assert.Equal(t, c.initial.At(i)-1, its[0].Values.At(i))
		} else {
			assert.Equal(t, c.initial.At(i), its[0].Values.At(i))
		}
	}
}

func TestSolve_NonFiniteAbortsAtStep(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, fakeOptions(nanPropagator()))
	require.NoError(t, err)

	r, err := solver.Solve(c.seed, c.initial)
	require.Error(t, err)
	assert.Nil(t, r)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageStep, se.Stage)
	assert.Equal(t, 1, se.Iteration)
	assert.True(t, errors.Is(err, hjr.ErrNonFinite))
	assert.Contains(t, err.Error(), "step failed at iteration 1")
}

type failingPreFilter struct {
	at int
}

func (f failingPreFilter) Filter(r *Result) (grid.Mask, error) {
	if r.NumIterations()+1 == f.at {
		return grid.Mask{}, errors.New("boom")
	}
	return r.LastActiveSet(), nil
}

func TestSolve_StageErrorNamesStageAndIteration(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	solver, err := NewSolver(Parts{
		Setup:         c.setup,
		AvoidSet:      c.avoid,
		ReachSet:      c.reach,
		PreFilter:     failingPreFilter{at: 3},
		Expander:      SignedDistanceNeighbors{Distance: 1},
		Stepper:       ClassicStepper{Propagation{Propagator: lowerBy(1), Settings: hjr.DefaultSettings(), TimeStep: -0.1}},
		PostFilter:    RemoveWhereUnchanged{Atol: 1e-3, Rtol: 1e-3},
		BreakCriteria: NewBreakCriteriaChecker(MaxIterations{Limit: 10}),
	})
	require.NoError(t, err)

	_, err = solver.Solve(c.seed, c.initial)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StagePreFilter, se.Stage)
	assert.Equal(t, 3, se.Iteration)
	assert.EqualError(t, se.Unwrap(), "boom")
}

func TestSolve_WallClockBudget(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	slow := hjr.PropagatorFunc(func(dyn dynamics.ControlAffine, g *grid.Grid, s hjr.SolverSettings,
		values grid.Table, t0, t1 float64, active grid.Mask) (grid.Table, error) {
		clock.Advance(time.Second)
		return lowerBy(1)(dyn, g, s, values, t0, t1, active)
	})

	opts := fakeOptions(slow)
	opts.Clock = clock
	opts.WallClockBudget = 3 * time.Second
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, opts)
	require.NoError(t, err)

	r, err := solver.Solve(c.seed, c.initial)
	require.NoError(t, err)
	assert.Equal(t, 3, r.NumIterations())
	assert.Equal(t, "wall_clock_budget", r.StopReason)
	assert.Equal(t, time.Unix(1000, 0), r.StartedAt())
	assert.Equal(t, 3*time.Second, r.TotalStepDuration())
}

func TestSolveFrom_ContinuesPreviousRun(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	opts := fakeOptions(lowerBy(1))
	opts.MaxIterations = 2
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, opts)
	require.NoError(t, err)

	first, err := solver.Solve(c.seed, c.initial)
	require.NoError(t, err)
	second, err := solver.SolveFrom(first)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ParentID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.SeedSet().Equal(first.LastActiveSet()))
	assert.True(t, second.InitialValues().Equal(first.RecentValues()))
	assert.Equal(t, 2, second.NumIterations())

	_, err = solver.SolveFrom(nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	other := newACCCase(t, grid.Shape{3, 7, 7})
	otherSolver, err := AsClassicSolver(other.setup, other.avoid, other.reach, opts)
	require.NoError(t, err)
	_, err = otherSolver.SolveFrom(first)
	assert.True(t, errors.Is(err, grid.ErrShapeMismatch))
}

func TestSolveFrom_ConvergedRunStaysPut(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, fakeOptions(settleTowards(c.initial.Scale(0.5))))
	require.NoError(t, err)

	converged, err := solver.Solve(c.seed, c.initial)
	require.NoError(t, err)
	require.True(t, converged.LastActiveSet().IsEmpty())

	rerun, err := solver.SolveFrom(converged)
	require.NoError(t, err)
	require.Equal(t, 1, rerun.NumIterations())
	it := rerun.Iterations()[0]
	assert.True(t, it.PreFiltered.IsEmpty())
	assert.True(t, it.Expanded.IsEmpty())
	assert.True(t, it.PostFiltered.IsEmpty())
	assert.True(t, rerun.RecentValues().Equal(converged.RecentValues()))
	assert.Equal(t, "post_filtered_active_set_empty", rerun.StopReason)
}

// renamed presents the cruise control model under another system name.
type renamed struct {
	dynamics.ControlAffine
	name string
}

func (r renamed) Name() string { return r.name }

func TestSolveFrom_RejectsOtherSystem(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	opts := fakeOptions(lowerBy(1))
	opts.MaxIterations = 1
	solver, err := AsClassicSolver(c.setup, c.avoid, c.reach, opts)
	require.NoError(t, err)
	first, err := solver.Solve(c.seed, c.initial)
	require.NoError(t, err)

	setup := Setup{Grid: c.setup.Grid, Dynamics: renamed{c.setup.Dynamics, "other_cruise_control"}}
	other, err := AsClassicSolver(setup, c.avoid, c.reach, opts)
	require.NoError(t, err)

	_, err = other.SolveFrom(first)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}

func TestBuilders(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	opts := fakeOptions(lowerBy(1))
	opts.WallClockBudget = time.Minute

	tests := []struct {
		kind    Kind
		pre     interface{}
		stepper interface{}
	}{
		{KindClassic, NoFilter{}, ClassicStepper{}},
		{KindBoundary, FilterWhereFarFromZeroLevelset{}, ClassicStepper{}},
		{KindBoundaryWithOnlyDecrease, FilterWhereFarFromZeroLevelset{}, DecreaseOnlyStepper{}},
		{KindBenchmark, NoFilter{}, NoOpStepper{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, err := Build(tt.kind, c.setup, c.avoid, c.reach, opts)
			require.NoError(t, err)
			assert.IsType(t, tt.pre, s.parts.PreFilter)
			assert.IsType(t, tt.stepper, s.parts.Stepper)
			assert.Equal(t, SignedDistanceNeighbors{Distance: 1}, s.parts.Expander)
			assert.Equal(t, RemoveWhereUnchanged{Atol: 1e-3, Rtol: 1e-3}, s.parts.PostFilter)

			var names []string
			for _, crit := range s.parts.BreakCriteria.Criteria() {
				names = append(names, crit.Name())
			}
			assert.Equal(t, []string{"max_iterations", "post_filtered_active_set_empty", "wall_clock_budget"}, names)
		})
	}

	_, err := Build("global", c.setup, c.avoid, c.reach, opts)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestFromConfig(t *testing.T) {
	c := newACCCase(t, grid.Shape{3, 9, 9})
	cfg := config.DefaultSolverConfig()
	kind := "boundary_only_decrease"
	budget := "2m"
	post := "backwards_reachable_tube"
	cfg.SolverKind = &kind
	cfg.WallClockBudget = &budget
	cfg.ValuePostprocessor = &post

	s, err := FromConfig(cfg, c.setup, c.avoid, c.reach)
	require.NoError(t, err)
	step, ok := s.parts.Stepper.(DecreaseOnlyStepper)
	require.True(t, ok)
	assert.Equal(t, -0.1, step.TimeStep)
	assert.Equal(t, hjr.PostprocessBackwardsReachableTube, step.Settings.Postprocessor)
	assert.IsType(t, &hjr.LaxFriedrichs{}, step.Propagator)
	assert.Len(t, s.parts.BreakCriteria.Criteria(), 3)

	zero := 0
	cfg.MaxIterations = &zero
	_, err = FromConfig(cfg, c.setup, c.avoid, c.reach)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
