package resilience

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen is returned without calling the operation while its breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrTimeout is returned once the policy's overall budget is spent.
	ErrTimeout = errors.New("retry budget timed out")
	// ErrTransient marks a transient failure that survived every attempt.
	ErrTransient = errors.New("transient failure")
)

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts exhausted: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrTransient}
	}
	return []error{ErrTransient, e.Last}
}

// TimeoutError is returned when the overall budget ran out between or during attempts.
type TimeoutError struct {
	Op       string
	Attempts int
	Budget   time.Duration
	Last     error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s: timed out after %d attempts (budget %s): %v", e.Op, e.Attempts, e.Budget, e.Last)
	}
	return fmt.Sprintf("%s: timed out after %d attempts (budget %s)", e.Op, e.Attempts, e.Budget)
}

func (e *TimeoutError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Last}
}
