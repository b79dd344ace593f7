package localsolver

import (
	"time"

	"github.com/refinencbf/localhjr/internal/timeutil"
)

// BreakCriterion decides whether the solve should stop after the latest
// iteration.
type BreakCriterion interface {
	Name() string
	ShouldBreak(r *Result) bool
}

// MaxIterations stops once Limit iterations have been recorded.
type MaxIterations struct {
	Limit int
}

func (MaxIterations) Name() string { return "max_iterations" }

func (c MaxIterations) ShouldBreak(r *Result) bool {
	return r.NumIterations() >= c.Limit
}

// Validate implements validator.
func (c MaxIterations) Validate() error {
	if c.Limit <= 0 {
		return invalidConfig("max iterations %d must be positive", c.Limit)
	}
	return nil
}

// PostFilteredActiveSetEmpty stops once the latest post-filtered set is empty.
type PostFilteredActiveSetEmpty struct{}

func (PostFilteredActiveSetEmpty) Name() string { return "post_filtered_active_set_empty" }

func (PostFilteredActiveSetEmpty) ShouldBreak(r *Result) bool {
	it, ok := r.LastIteration()
	return ok && it.PostFiltered.IsEmpty()
}

// WallClockBudget stops once Budget has elapsed since the solve started.
// The check runs between iterations, so a solve can overrun by one iteration.
type WallClockBudget struct {
	Budget time.Duration
	// Clock defaults to the wall clock.
	Clock timeutil.Clock
}

func (WallClockBudget) Name() string { return "wall_clock_budget" }

func (c WallClockBudget) ShouldBreak(r *Result) bool {
	clock := c.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return clock.Since(r.StartedAt()) >= c.Budget
}

// Validate implements validator.
func (c WallClockBudget) Validate() error {
	if c.Budget <= 0 {
		return invalidConfig("wall clock budget %s must be positive", c.Budget)
	}
	return nil
}

// BreakCriteriaChecker ORs an ordered list of criteria.
type BreakCriteriaChecker struct {
	criteria []BreakCriterion
}

// NewBreakCriteriaChecker keeps criteria in the given order; the first one
// that fires names the stop reason.
func NewBreakCriteriaChecker(criteria ...BreakCriterion) *BreakCriteriaChecker {
	return &BreakCriteriaChecker{criteria: append([]BreakCriterion(nil), criteria...)}
}

// Check returns true and the name of the first criterion that fires.
func (b *BreakCriteriaChecker) Check(r *Result) (bool, string) {
	for _, c := range b.criteria {
		if c.ShouldBreak(r) {
			return true, c.Name()
		}
	}
	return false, ""
}

// Criteria returns the configured criteria in order.
func (b *BreakCriteriaChecker) Criteria() []BreakCriterion {
	return b.criteria
}

// Validate rejects an empty checker, any invalid criterion, and a checker
// without MaxIterations.
func (b *BreakCriteriaChecker) Validate() error {
	if b == nil || len(b.criteria) == 0 {
		return invalidConfig("no break criteria")
	}
	bounded := false
	for _, c := range b.criteria {
		if c == nil {
			return invalidConfig("nil break criterion")
		}
		if err := validate(c); err != nil {
			return err
		}
		if _, ok := c.(MaxIterations); ok {
			bounded = true
		}
	}
	if !bounded {
		return invalidConfig("break criteria must include max_iterations")
	}
	return nil
}
