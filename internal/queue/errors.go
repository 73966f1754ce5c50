package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrNotYetResolvable is returned when the timeline does not hold enough
	// information to decide the next unit. Callers retry after the next timeline update.
	ErrNotYetResolvable = errors.New("next media period not yet resolvable")

	// ErrEndOfTimeline is returned when nothing follows the last unit of the timeline.
	ErrEndOfTimeline = fmt.Errorf("%w: end of timeline", ErrNotYetResolvable)

	// ErrPeriodNotFound is returned when a period uid is not part of the current timeline
	ErrPeriodNotFound = errors.New("period not found in timeline")

	// ErrUnitNotFound is returned when an ad group or ad of an id no longer exists
	ErrUnitNotFound = errors.New("media period unit not found in timeline")

	// ErrQueueFull is returned when the look-ahead limit is reached
	ErrQueueFull = errors.New("media period queue is full")

	// ErrInvalidPrecondition marks programmer errors that break the chain invariants
	ErrInvalidPrecondition = errors.New("invalid queue precondition")

	// ErrHolderReleased marks use of a holder after it left the chain
	ErrHolderReleased = fmt.Errorf("%w: holder already released", ErrInvalidPrecondition)
)

// InvariantError is the panic value used when a caller violates the chain invariants.
// It is never returned as an error: continuing after it would corrupt the chain.
type InvariantError struct {
	Op    string
	Cause error
}

// Error implements the error interface
func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *InvariantError) Unwrap() error {
	return e.Cause
}

func mustf(cond bool, op string, format string, args ...any) {
	if cond {
		return
	}
	panic(&InvariantError{Op: op, Cause: fmt.Errorf("%w: "+format, append([]any{ErrInvalidPrecondition}, args...)...)})
}

// IsNotYetResolvable checks if the error means the caller should retry later
func IsNotYetResolvable(err error) bool {
	return errors.Is(err, ErrNotYetResolvable)
}

// IsEndOfTimeline checks if the error means nothing follows the last unit
func IsEndOfTimeline(err error) bool {
	return errors.Is(err, ErrEndOfTimeline)
}
