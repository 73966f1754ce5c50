package timeline

import "errors"

var (
	// ErrInvalidTimeline is returned when windows and periods do not describe a consistent timeline
	ErrInvalidTimeline = errors.New("invalid timeline")

	// ErrInvalidAdPlaybackState is returned when ad groups break their ordering or count invariants
	ErrInvalidAdPlaybackState = errors.New("invalid ad playback state")

	// ErrInvalidShuffleOrder is returned when a shuffle order is not a permutation of the window indices
	ErrInvalidShuffleOrder = errors.New("invalid shuffle order")

	// ErrInvalidRepeatMode is returned when parsing an unknown repeat mode
	ErrInvalidRepeatMode = errors.New("invalid repeat mode")
)
