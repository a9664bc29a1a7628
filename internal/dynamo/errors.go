package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidInput indicates malformed or out-of-domain configuration or arguments.
	ErrInvalidInput = errors.New("dynamo: invalid input")

	// ErrNumericalInstability indicates the integration produced a non-finite or diverged state.
	ErrNumericalInstability = errors.New("dynamo: numerical instability (state diverged)")

	// ErrObserverFailure indicates an observer could not accept a sample or produce a summary.
	ErrObserverFailure = errors.New("dynamo: observer failure")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// Invalid returns an ErrInvalidInput naming the offending field.
func Invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, fmt.Sprintf(format, args...))
}

// Classify names the failure category of err for reporting.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNumericalInstability):
		return "numerical_instability"
	case errors.Is(err, ErrObserverFailure):
		return "observer_failure"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
