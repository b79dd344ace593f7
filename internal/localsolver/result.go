package localsolver

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
)

// Setup is the read-only problem context shared by every stage of a solve.
type Setup struct {
	Grid     *grid.Grid
	Dynamics dynamics.ControlAffine
}

func (s Setup) validate() error {
	if s.Grid == nil {
		return invalidConfig("setup has no grid")
	}
	if s.Dynamics == nil {
		return invalidConfig("setup has no dynamics")
	}
	if s.Dynamics.StateDim() != s.Grid.NumDims() {
		return invalidConfig("dynamics %s has %d states, grid has %d dimensions",
			s.Dynamics.Name(), s.Dynamics.StateDim(), s.Grid.NumDims())
	}
	return nil
}

// Iteration records the four stage outputs of one loop pass. It is not
// modified after it is appended to a Result.
type Iteration struct {
	PreFiltered  grid.Mask
	Expanded     grid.Mask
	Values       grid.Table
	PostFiltered grid.Mask
	StepDuration time.Duration
}

// Result is the append-only history of one solve.
type Result struct {
	// ID identifies the run in stores and logs.
	ID string
	// ParentID is the run this one continued from, if any.
	ParentID string
	// StopReason names the break criterion that ended the solve.
	StopReason string

	setup      Setup
	avoid      grid.Mask
	reach      grid.Mask
	seed       grid.Mask
	initial    grid.Table
	iterations []Iteration
	startedAt  time.Time
}

// Initialize creates an empty Result. All masks and the initial table must
// match the grid shape.
func Initialize(setup Setup, avoid, reach, seed grid.Mask, initial grid.Table) (*Result, error) {
	if err := setup.validate(); err != nil {
		return nil, err
	}
	g := setup.Grid
	masks := []struct {
		name string
		mask grid.Mask
	}{{"avoid set", avoid}, {"reach set", reach}, {"seed set", seed}}
	for _, m := range masks {
		if err := g.CheckMask(m.mask); err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
	}
	if err := g.CheckTable(initial); err != nil {
		return nil, fmt.Errorf("initial values: %w", err)
	}
	return &Result{
		ID:      uuid.New().String(),
		setup:   setup,
		avoid:   avoid,
		reach:   reach,
		seed:    seed,
		initial: initial,
	}, nil
}

// Record is the stored form of a Result, without its problem context.
type Record struct {
	ID         string
	ParentID   string
	StopReason string
	StartedAt  time.Time

	AvoidSet      grid.Mask
	ReachSet      grid.Mask
	SeedSet       grid.Mask
	InitialValues grid.Table
	Iterations    []Iteration
}

// Record returns the stored form of r. The masks and tables are shared.
func (r *Result) Record() Record {
	return Record{
		ID:            r.ID,
		ParentID:      r.ParentID,
		StopReason:    r.StopReason,
		StartedAt:     r.startedAt,
		AvoidSet:      r.avoid,
		ReachSet:      r.reach,
		SeedSet:       r.seed,
		InitialValues: r.initial,
		Iterations:    r.iterations,
	}
}

// Restore rebuilds a Result loaded from storage. Every iteration is checked
// against the grid shape.
func Restore(setup Setup, rec Record) (*Result, error) {
	r, err := Initialize(setup, rec.AvoidSet, rec.ReachSet, rec.SeedSet, rec.InitialValues)
	if err != nil {
		return nil, err
	}
	if rec.ID != "" {
		r.ID = rec.ID
	}
	r.ParentID = rec.ParentID
	r.StopReason = rec.StopReason
	r.startedAt = rec.StartedAt
	for i, it := range rec.Iterations {
		if err := r.checkIteration(it); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		r.iterations = append(r.iterations, it)
	}
	return r, nil
}

// AddIteration appends it to the history.
func (r *Result) AddIteration(it Iteration) {
	r.iterations = append(r.iterations, it)
}

// RecentValues returns the values of the last iteration, or the initial
// values before the first iteration.
func (r *Result) RecentValues() grid.Table {
	if n := len(r.iterations); n > 0 {
		return r.iterations[n-1].Values
	}
	return r.initial
}

// LastActiveSet returns the post-filtered set of the last iteration, or the
// seed set before the first iteration.
func (r *Result) LastActiveSet() grid.Mask {
	if n := len(r.iterations); n > 0 {
		return r.iterations[n-1].PostFiltered
	}
	return r.seed
}

// LastIteration returns the most recent iteration.
func (r *Result) LastIteration() (Iteration, bool) {
	if len(r.iterations) == 0 {
		return Iteration{}, false
	}
	return r.iterations[len(r.iterations)-1], true
}

// Iterations returns the history in order. Callers must not modify it.
func (r *Result) Iterations() []Iteration { return r.iterations }

// NumIterations returns the number of recorded iterations.
func (r *Result) NumIterations() int { return len(r.iterations) }

// Setup returns the problem context.
func (r *Result) Setup() Setup { return r.setup }

// Grid is shorthand for Setup().Grid.
func (r *Result) Grid() *grid.Grid { return r.setup.Grid }

func (r *Result) AvoidSet() grid.Mask       { return r.avoid }
func (r *Result) ReachSet() grid.Mask       { return r.reach }
func (r *Result) SeedSet() grid.Mask        { return r.seed }
func (r *Result) InitialValues() grid.Table { return r.initial }

// StartedAt is when the solve that produced r began.
func (r *Result) StartedAt() time.Time { return r.startedAt }

// TotalStepDuration sums the step time of every iteration.
func (r *Result) TotalStepDuration() time.Duration {
	var total time.Duration
	for _, it := range r.iterations {
		total += it.StepDuration
	}
	return total
}

func (r *Result) checkIteration(it Iteration) error {
	g := r.setup.Grid
	for _, m := range []grid.Mask{it.PreFiltered, it.Expanded, it.PostFiltered} {
		if err := g.CheckMask(m); err != nil {
			return err
		}
	}
	return g.CheckTable(it.Values)
}
