package localsolver

import (
	"errors"
	"fmt"

	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/monitoring"
	"github.com/refinencbf/localhjr/internal/timeutil"
)

// Parts are the components of a Solver.
type Parts struct {
	Setup    Setup
	AvoidSet grid.Mask
	ReachSet grid.Mask

	PreFilter     ActiveSetPreFilter
	Expander      NeighborExpander
	Stepper       LocalHjrStepper
	PostFilter    ActiveSetPostFilter
	BreakCriteria *BreakCriteriaChecker

	// Clock times stages and starts wall-clock budgets; nil uses the wall clock.
	Clock   timeutil.Clock
	Verbose bool
}

// Solver runs the local active-set iteration. A Solver holds no per-solve
// state and may be reused for several solves, one at a time.
type Solver struct {
	parts Parts
	clock timeutil.Clock
	logf  func(string, ...interface{})
}

// validator is implemented by components with tunable parameters.
type validator interface {
	Validate() error
}

func validate(v interface{}) error {
	if c, ok := v.(validator); ok {
		return c.Validate()
	}
	return nil
}

// NewSolver validates every part and returns a ready solver.
func NewSolver(p Parts) (*Solver, error) {
	if err := p.Setup.validate(); err != nil {
		return nil, err
	}
	if err := p.Setup.Grid.CheckMask(p.AvoidSet); err != nil {
		return nil, fmt.Errorf("avoid set: %w", err)
	}
	if err := p.Setup.Grid.CheckMask(p.ReachSet); err != nil {
		return nil, fmt.Errorf("reach set: %w", err)
	}
	switch {
	case p.PreFilter == nil:
		return nil, invalidConfig("missing pre-filter")
	case p.Expander == nil:
		return nil, invalidConfig("missing neighbor expander")
	case p.Stepper == nil:
		return nil, invalidConfig("missing stepper")
	case p.PostFilter == nil:
		return nil, invalidConfig("missing post-filter")
	}
	for _, c := range []interface{}{p.PreFilter, p.Expander, p.Stepper, p.PostFilter} {
		if err := validate(c); err != nil {
			return nil, err
		}
	}
	if err := p.BreakCriteria.Validate(); err != nil {
		return nil, err
	}

	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Solver{parts: p, clock: clock, logf: monitoring.Verbose(p.Verbose)}, nil
}

// Setup returns the problem context the solver was built with.
func (s *Solver) Setup() Setup { return s.parts.Setup }

// Solve runs the loop from the given active set and initial values until a
// break criterion fires. At least one iteration always runs.
func (s *Solver) Solve(active grid.Mask, initial grid.Table) (*Result, error) {
	r, err := Initialize(s.parts.Setup, s.parts.AvoidSet, s.parts.ReachSet, active, initial)
	if err != nil {
		return nil, err
	}
	return s.run(r)
}

// SolveFrom starts a new solve seeded with the last active set and values of
// previous. The new Result records previous.ID as its parent.
func (s *Solver) SolveFrom(previous *Result) (*Result, error) {
	if previous == nil {
		return nil, invalidConfig("no previous result")
	}
	if !previous.Grid().Shape().Equal(s.parts.Setup.Grid.Shape()) {
		return nil, fmt.Errorf("previous result: %w: %s vs %s",
			grid.ErrShapeMismatch, previous.Grid().Shape(), s.parts.Setup.Grid.Shape())
	}
	if got, want := previous.Setup().Dynamics.Name(), s.parts.Setup.Dynamics.Name(); got != want {
		return nil, invalidConfig("previous result is for system %q, solver is for %q", got, want)
	}
	r, err := Initialize(s.parts.Setup, s.parts.AvoidSet, s.parts.ReachSet,
		previous.LastActiveSet(), previous.RecentValues())
	if err != nil {
		return nil, err
	}
	r.ParentID = previous.ID
	return s.run(r)
}

func (s *Solver) run(r *Result) (*Result, error) {
	r.startedAt = s.clock.Now()
	s.logf("[localsolver] solve %s: %d seed cells on grid %s", r.ID, r.SeedSet().Count(), r.Grid().Shape())

	for {
		n := r.NumIterations() + 1
		it, err := s.iterate(r, n)
		if err != nil {
			var se *StageError
			if errors.As(err, &se) {
				observeFailure(se)
			}
			return nil, err
		}
		r.AddIteration(it)
		observeIteration(it)
		monitoring.LogIteration(s.logf, n, it.PreFiltered.Count(), it.Expanded.Count(), it.PostFiltered.Count(), it.StepDuration)

		if stop, reason := s.parts.BreakCriteria.Check(r); stop {
			r.StopReason = reason
			solvesTotal.WithLabelValues(reason).Inc()
			s.logf("[localsolver] solve %s stopped after %d iterations: %s", r.ID, n, reason)
			return r, nil
		}
	}
}

// iterate runs the four stages once, strictly in order.
func (s *Solver) iterate(r *Result, n int) (Iteration, error) {
	g := r.Grid()
	fail := func(stage Stage, err error) (Iteration, error) {
		return Iteration{}, &StageError{Stage: stage, Iteration: n, Err: err}
	}

	pre, err := s.parts.PreFilter.Filter(r)
	if err == nil {
		err = g.CheckMask(pre)
	}
	if err != nil {
		return fail(StagePreFilter, err)
	}

	expanded, err := s.parts.Expander.Expand(r, pre)
	if err == nil {
		err = g.CheckMask(expanded)
	}
	if err != nil {
		return fail(StageExpand, err)
	}

	sw := timeutil.StartStopwatch(s.clock)
	next, err := s.parts.Stepper.Step(r, pre, expanded)
	if err == nil {
		err = g.CheckTable(next)
	}
	if err != nil {
		return fail(StageStep, err)
	}
	elapsed := sw.Elapsed()

	post, err := s.parts.PostFilter.Filter(r, pre, expanded, next)
	if err == nil {
		err = g.CheckMask(post)
	}
	if err != nil {
		return fail(StagePostFilter, err)
	}

	return Iteration{
		PreFiltered:  pre,
		Expanded:     expanded,
		Values:       next,
		PostFiltered: post,
		StepDuration: elapsed,
	}, nil
}

func isShapeMismatch(err error) bool {
	return errors.Is(err, grid.ErrShapeMismatch)
}
