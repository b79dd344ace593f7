// Package hjr provides the value-propagation primitive the local solver
// steps with: given dynamics, a grid, a value table and an active set, it
// advances the Hamilton-Jacobi value function over a time interval on the
// active cells only.
package hjr

import (
	"errors"
	"fmt"
)

var (
	// ErrNonFinite is returned when propagation produces NaN or Inf.
	ErrNonFinite = errors.New("hjr: value function is not finite")
	// ErrInvalidSettings is returned for unknown accuracies, postprocessors or a non-positive CFL.
	ErrInvalidSettings = errors.New("hjr: invalid solver settings")
	// ErrDimensionMismatch is returned when dynamics and grid disagree on the state dimension.
	ErrDimensionMismatch = errors.New("hjr: dynamics and grid dimensions differ")
	// ErrTooManySubsteps is returned when the CFL condition would need more substeps than allowed.
	ErrTooManySubsteps = errors.New("hjr: CFL condition requires too many substeps")
)

// Accuracy selects the time integration scheme.
type Accuracy string

const (
	AccuracyLow      Accuracy = "low"
	AccuracyMedium   Accuracy = "medium"
	AccuracyHigh     Accuracy = "high"
	AccuracyVeryHigh Accuracy = "very_high"
)

// Postprocessor is applied to the values after every substep.
type Postprocessor string

const (
	PostprocessIdentity Postprocessor = "identity"
	// PostprocessBackwardsReachableTube keeps min(v, v_start) so values never rise
	// above where the propagation started.
	PostprocessBackwardsReachableTube Postprocessor = "backwards_reachable_tube"
)

// SolverSettings configure a Propagator.
type SolverSettings struct {
	Accuracy      Accuracy      `json:"accuracy"`
	CFL           float64       `json:"cfl"`
	Postprocessor Postprocessor `json:"value_postprocessor"`
}

// SettingsWithAccuracy returns the standard settings for acc.
func SettingsWithAccuracy(acc Accuracy) (SolverSettings, error) {
	s := SolverSettings{Accuracy: acc, CFL: 0.75, Postprocessor: PostprocessIdentity}
	if acc == AccuracyVeryHigh {
		s.CFL = 0.5
	}
	if err := s.Validate(); err != nil {
		return SolverSettings{}, err
	}
	return s, nil
}

// DefaultSettings are the medium-accuracy settings.
func DefaultSettings() SolverSettings {
	s, _ := SettingsWithAccuracy(AccuracyMedium)
	return s
}

// Validate checks every field is known and in range.
func (s SolverSettings) Validate() error {
	switch s.Accuracy {
	case AccuracyLow, AccuracyMedium, AccuracyHigh, AccuracyVeryHigh:
	default:
		return fmt.Errorf("%w: accuracy %q", ErrInvalidSettings, s.Accuracy)
	}
	switch s.Postprocessor {
	case PostprocessIdentity, PostprocessBackwardsReachableTube, "":
	default:
		return fmt.Errorf("%w: postprocessor %q", ErrInvalidSettings, s.Postprocessor)
	}
	if !(s.CFL > 0 && s.CFL <= 1) {
		return fmt.Errorf("%w: cfl %g must be in (0, 1]", ErrInvalidSettings, s.CFL)
	}
	return nil
}

// stages returns the number of Runge-Kutta stages for the accuracy.
func (s SolverSettings) stages() int {
	switch s.Accuracy {
	case AccuracyLow:
		return 1
	case AccuracyMedium:
		return 2
	default:
		return 3
	}
}
