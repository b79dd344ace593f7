package localsolver

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates a solver or component parameter out of range.
var ErrInvalidConfig = errors.New("localsolver: invalid configuration")

// Stage names one step of the iteration loop.
type Stage string

const (
	StagePreFilter  Stage = "pre-filter"
	StageExpand     Stage = "expand"
	StageStep       Stage = "step"
	StagePostFilter Stage = "post-filter"
)

// StageError reports which stage failed and at which iteration (1-based).
type StageError struct {
	Stage     Stage
	Iteration int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("localsolver: %s failed at iteration %d: %v", e.Stage, e.Iteration, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func invalidConfig(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
