package timeline

// PeriodPosition is a position expressed relative to the start of a period.
type PeriodPosition struct {
	PeriodUID string
	Position  int64
}

// PeriodPosition converts a position in a window into a position in one of its periods.
// This is a pure function over the snapshot.
//
// Parameters:
//   - windowIndex: index of the window, must be in range
//   - windowPosition: position relative to the window start, or TimeUnset for the
//     window's default position
//   - projection: how far to project the default position of a dynamic window forward
//
// Returns false when the default position cannot be resolved yet.
func (t *Timeline) PeriodPosition(windowIndex int, windowPosition, projection int64) (PeriodPosition, bool) {
	w := t.windows[windowIndex]
	if windowPosition == TimeUnset {
		windowPosition = w.ProjectedDefaultPosition(projection)
		if windowPosition == TimeUnset {
			return PeriodPosition{}, false
		}
	}

	// Walk forward while the next period starts at or before the requested position
	periodIndex := w.FirstPeriodIndex
	for periodIndex < w.LastPeriodIndex &&
		t.periods[periodIndex].PositionInWindow != windowPosition &&
		t.periods[periodIndex+1].PositionInWindow <= windowPosition {
		periodIndex++
	}

	p := t.periods[periodIndex]
	position := windowPosition - p.PositionInWindow
	// Every position must leave at least one playable tick in the period
	if p.Duration != TimeUnset {
		position = min(position, p.Duration-1)
	}
	position = max(0, position)

	return PeriodPosition{PeriodUID: p.UID, Position: position}, true
}

// DefaultPosition returns the period position of a window's default position.
func (t *Timeline) DefaultPosition(windowIndex int) (PeriodPosition, bool) {
	return t.PeriodPosition(windowIndex, TimeUnset, 0)
}
