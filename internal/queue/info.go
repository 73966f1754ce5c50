package queue

// MediaPeriodInfo is a resolved scheduling unit: the id plus where it starts and ends.
// All positions are microseconds relative to the period start.
type MediaPeriodInfo struct {
	ID MediaPeriodID `json:"id"`

	StartPosition int64 `json:"start_position_us"`

	// RequestedContentPosition is where content resumes after an ad, or TimeUnset
	// for the default position.
	RequestedContentPosition int64 `json:"requested_content_position_us"`

	// EndPosition is TimeUnset when the unit plays to the natural period end.
	EndPosition int64 `json:"end_position_us"`

	Duration int64 `json:"duration_us"`

	// IsFollowedByTransitionToSameStream is set when the next unit is a server-side
	// inserted ad of the same stream, so renderers need no reset.
	IsFollowedByTransitionToSameStream bool `json:"followed_by_same_stream"`

	IsLastInPeriod   bool `json:"is_last_in_period"`
	IsLastInWindow   bool `json:"is_last_in_window"`
	IsLastInTimeline bool `json:"is_last_in_timeline"`
}

// WithRequestedContentPosition returns a copy with a different requested content position.
func (i MediaPeriodInfo) WithRequestedContentPosition(position int64) MediaPeriodInfo {
	i.RequestedContentPosition = position
	return i
}

// WithStartPosition returns a copy with a different start position.
func (i MediaPeriodInfo) WithStartPosition(position int64) MediaPeriodInfo {
	i.StartPosition = position
	return i
}
