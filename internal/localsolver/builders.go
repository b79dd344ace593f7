package localsolver

import (
	"fmt"
	"time"

	"github.com/refinencbf/localhjr/internal/config"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/hjr"
	"github.com/refinencbf/localhjr/internal/timeutil"
)

// Kind names a ready-made solver configuration.
type Kind string

const (
	KindClassic                  Kind = "classic"
	KindBoundary                 Kind = "boundary"
	KindBoundaryWithOnlyDecrease Kind = "boundary_only_decrease"
	KindBenchmark                Kind = "benchmark"
)

// Options parameterise the ready-made solvers.
type Options struct {
	NeighborDistance float64
	BoundaryDistance float64
	TimeStep         float64
	Atol             float64
	Rtol             float64
	MaxIterations    int
	// WallClockBudget adds a WallClockBudget criterion when positive.
	WallClockBudget time.Duration

	Settings hjr.SolverSettings
	// Propagator defaults to hjr.NewLaxFriedrichs().
	Propagator hjr.Propagator
	Clock      timeutil.Clock
	Verbose    bool
}

// DefaultOptions returns the standard parameters: unit neighbour and
// boundary distances, a backward time step of 0.1, tolerances of 1e-3 and at
// most 100 iterations.
func DefaultOptions() Options {
	return Options{
		NeighborDistance: 1.0,
		BoundaryDistance: 1.0,
		TimeStep:         -0.1,
		Atol:             1e-3,
		Rtol:             1e-3,
		MaxIterations:    100,
		Settings:         hjr.DefaultSettings(),
	}
}

// OptionsFromConfig maps a solver configuration onto Options.
func OptionsFromConfig(cfg *config.SolverConfig) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	settings, err := hjr.SettingsWithAccuracy(hjr.Accuracy(cfg.GetAccuracy()))
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	settings.Postprocessor = hjr.Postprocessor(cfg.GetValuePostprocessor())
	return Options{
		NeighborDistance: cfg.GetNeighborDistance(),
		BoundaryDistance: cfg.GetBoundaryDistance(),
		TimeStep:         cfg.GetTimeStep(),
		Atol:             cfg.GetValueChangeAtol(),
		Rtol:             cfg.GetValueChangeRtol(),
		MaxIterations:    cfg.GetMaxIterations(),
		WallClockBudget:  cfg.GetWallClockBudget(),
		Settings:         settings,
		Verbose:          cfg.GetVerbose(),
	}, nil
}

// FromConfig builds the solver kind named by cfg.
func FromConfig(cfg *config.SolverConfig, setup Setup, avoid, reach grid.Mask) (*Solver, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return Build(Kind(cfg.GetSolverKind()), setup, avoid, reach, opts)
}

// Build dispatches on kind.
func Build(kind Kind, setup Setup, avoid, reach grid.Mask, opts Options) (*Solver, error) {
	switch kind {
	case KindClassic:
		return AsClassicSolver(setup, avoid, reach, opts)
	case KindBoundary:
		return AsBoundarySolver(setup, avoid, reach, opts)
	case KindBoundaryWithOnlyDecrease:
		return AsBoundarySolverWithOnlyDecrease(setup, avoid, reach, opts)
	case KindBenchmark:
		return AsBenchmarkSolver(setup, avoid, reach, opts)
	default:
		return nil, invalidConfig("unknown solver kind %q", kind)
	}
}

// AsClassicSolver processes the whole active set every iteration and
// overwrites values in the expanded set.
func AsClassicSolver(setup Setup, avoid, reach grid.Mask, opts Options) (*Solver, error) {
	return opts.assemble(setup, avoid, reach, NoFilter{}, ClassicStepper{opts.propagation()})
}

// AsBoundarySolver restricts each iteration to the active cells near the zero
// level set and overwrites values in the expanded set.
func AsBoundarySolver(setup Setup, avoid, reach grid.Mask, opts Options) (*Solver, error) {
	pre := FilterWhereFarFromZeroLevelset{BoundaryDistance: opts.BoundaryDistance}
	return opts.assemble(setup, avoid, reach, pre, ClassicStepper{opts.propagation()})
}

// AsBoundarySolverWithOnlyDecrease is AsBoundarySolver with values that never increase.
func AsBoundarySolverWithOnlyDecrease(setup Setup, avoid, reach grid.Mask, opts Options) (*Solver, error) {
	pre := FilterWhereFarFromZeroLevelset{BoundaryDistance: opts.BoundaryDistance}
	return opts.assemble(setup, avoid, reach, pre, DecreaseOnlyStepper{opts.propagation()})
}

// AsBenchmarkSolver times propagation without changing any value.
func AsBenchmarkSolver(setup Setup, avoid, reach grid.Mask, opts Options) (*Solver, error) {
	return opts.assemble(setup, avoid, reach, NoFilter{}, NoOpStepper{opts.propagation()})
}

func (o Options) propagation() Propagation {
	prop := o.Propagator
	if prop == nil {
		prop = hjr.NewLaxFriedrichs()
	}
	return Propagation{
		Propagator: prop,
		Settings:   o.Settings,
		TimeStep:   o.TimeStep,
		Verbose:    o.Verbose,
		Clock:      o.Clock,
	}
}

func (o Options) breakCriteria() *BreakCriteriaChecker {
	criteria := []BreakCriterion{
		MaxIterations{Limit: o.MaxIterations},
		PostFilteredActiveSetEmpty{},
	}
	if o.WallClockBudget > 0 {
		criteria = append(criteria, WallClockBudget{Budget: o.WallClockBudget, Clock: o.Clock})
	}
	return NewBreakCriteriaChecker(criteria...)
}

func (o Options) assemble(setup Setup, avoid, reach grid.Mask, pre ActiveSetPreFilter, stepper LocalHjrStepper) (*Solver, error) {
	return NewSolver(Parts{
		Setup:         setup,
		AvoidSet:      avoid,
		ReachSet:      reach,
		PreFilter:     pre,
		Expander:      SignedDistanceNeighbors{Distance: o.NeighborDistance},
		Stepper:       stepper,
		PostFilter:    RemoveWhereUnchanged{Atol: o.Atol, Rtol: o.Rtol},
		BreakCriteria: o.breakCriteria(),
		Clock:         o.Clock,
		Verbose:       o.Verbose,
	})
}
