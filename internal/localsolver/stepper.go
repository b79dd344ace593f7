package localsolver

import (
	"errors"
	"fmt"
	"math"

	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/hjr"
	"github.com/refinencbf/localhjr/internal/monitoring"
	"github.com/refinencbf/localhjr/internal/timeutil"
)

// LocalHjrStepper produces the next value table. The result has the grid
// shape and equals r.RecentValues() outside expanded.
type LocalHjrStepper interface {
	Step(r *Result, preFiltered, expanded grid.Mask) (grid.Table, error)
}

// Propagation holds what every stepper passes to the propagator.
type Propagation struct {
	Propagator hjr.Propagator
	Settings   hjr.SolverSettings
	// TimeStep is the propagation horizon per iteration; negative steps
	// backward in time.
	TimeStep float64
	Verbose  bool
	// Clock times the propagation call; nil uses the wall clock.
	Clock timeutil.Clock
}

// Validate implements validator.
func (p Propagation) Validate() error {
	if p.Propagator == nil {
		return invalidConfig("stepper has no propagator")
	}
	if p.TimeStep == 0 || math.IsNaN(p.TimeStep) || math.IsInf(p.TimeStep, 0) {
		return invalidConfig("time step %g must be finite and non-zero", p.TimeStep)
	}
	if err := p.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// propagate runs one time step over expanded and merges the result so cells
// outside expanded keep their previous value.
func (p Propagation) propagate(r *Result, expanded grid.Mask) (grid.Table, error) {
	setup := r.Setup()
	prev := r.RecentValues()
	sw := timeutil.StartStopwatch(p.Clock)
	next, err := p.Propagator.Propagate(setup.Dynamics, setup.Grid, p.Settings, prev, 0, p.TimeStep, expanded)
	if err != nil {
		return grid.Table{}, err
	}
	if err := setup.Grid.CheckTable(next); err != nil {
		return grid.Table{}, fmt.Errorf("propagator output: %w", err)
	}
	if p.Verbose {
		monitoring.Logf("[localsolver] propagated %d cells over dt=%g in %s", expanded.Count(), p.TimeStep, sw.Elapsed())
	}
	merged := prev.Merge(expanded, next)
	if idx := firstNonFiniteIn(merged, expanded); idx >= 0 {
		return grid.Table{}, fmt.Errorf("%w: cell %d is %v", hjr.ErrNonFinite, idx, merged.At(idx))
	}
	return merged, nil
}

// ClassicStepper adopts the propagated value everywhere in the expanded set,
// including cells whose value increased.
type ClassicStepper struct {
	Propagation
}

func (s ClassicStepper) Step(r *Result, preFiltered, expanded grid.Mask) (grid.Table, error) {
	return s.propagate(r, expanded)
}

// DecreaseOnlyStepper adopts the propagated value only where it is strictly
// lower than the previous one, so values never increase.
type DecreaseOnlyStepper struct {
	Propagation
}

func (s DecreaseOnlyStepper) Step(r *Result, preFiltered, expanded grid.Mask) (grid.Table, error) {
	next, err := s.propagate(r, expanded)
	if err != nil {
		return grid.Table{}, err
	}
	prev := r.RecentValues()
	decreased := next.Less(prev).And(expanded)
	return prev.Merge(decreased, next), nil
}

// NoOpStepper runs the propagation for timing and returns the previous
// values unchanged.
type NoOpStepper struct {
	Propagation
}

func (s NoOpStepper) Step(r *Result, preFiltered, expanded grid.Mask) (grid.Table, error) {
	sw := timeutil.StartStopwatch(s.Clock)
	if _, err := s.propagate(r, expanded); err != nil {
		return grid.Table{}, err
	}
	if s.Verbose {
		monitoring.Logf("[localsolver] benchmark step: %d cells in %s", expanded.Count(), sw.Elapsed())
	}
	return r.RecentValues(), nil
}

func firstNonFiniteIn(t grid.Table, m grid.Mask) int {
	for i, c := range m.Cells() {
		if !c {
			continue
		}
		if v := t.At(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// isNumerical reports whether err came from the value function diverging.
func isNumerical(err error) bool {
	return errors.Is(err, hjr.ErrNonFinite)
}
