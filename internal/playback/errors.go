package playback

import "errors"

var (
	// ErrSessionNotFound indicates the requested session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionStopped is returned by commands sent to a stopped session
	ErrSessionStopped = errors.New("session stopped")

	// ErrNothingToAdvance is returned when the chain has no holder to advance to
	ErrNothingToAdvance = errors.New("no media period to advance to")

	// ErrNoLoadingPeriod is returned by MarkLoaded on an empty chain
	ErrNoLoadingPeriod = errors.New("no media period is loading")
)

// IsSessionNotFound checks if the error is a session not found error
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsConflict reports whether the command did not fit the current chain state
func IsConflict(err error) bool {
	return errors.Is(err, ErrNothingToAdvance) || errors.Is(err, ErrNoLoadingPeriod)
}
