// Package timeline models the structure of playable content: windows (playlist
// entries) made of periods (contiguous content regions) with embedded ad groups.
// A Timeline is an immutable snapshot; every update produces a new one.
package timeline

import (
	"fmt"
	"slices"
)

// Timeline is an immutable snapshot of windows and periods.
type Timeline struct {
	windows []Window
	periods []Period
	shuffle *ShuffleOrder
}

// Option configures a Timeline built by New.
type Option func(*Timeline)

// WithShuffleOrder sets the shuffle order used when navigating with shuffle enabled.
func WithShuffleOrder(order *ShuffleOrder) Option {
	return func(t *Timeline) {
		t.shuffle = order
	}
}

// Empty is a timeline without windows.
var Empty = &Timeline{}

// New creates a timeline snapshot. Windows and periods are copied.
func New(windows []Window, periods []Period, opts ...Option) (*Timeline, error) {
	t := &Timeline{
		windows: slices.Clone(windows),
		periods: slices.Clone(periods),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.shuffle == nil {
		perm := make([]int, len(windows))
		for i := range perm {
			perm[i] = i
		}
		t.shuffle, _ = NewShuffleOrder(perm)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Timeline) validate() error {
	if t.shuffle.Len() != len(t.windows) {
		return fmt.Errorf("%w: shuffle order covers %d windows, timeline has %d",
			ErrInvalidTimeline, t.shuffle.Len(), len(t.windows))
	}
	next := 0
	for i, w := range t.windows {
		if w.FirstPeriodIndex > w.LastPeriodIndex {
			return fmt.Errorf("%w: window %d first period %d after last period %d",
				ErrInvalidTimeline, i, w.FirstPeriodIndex, w.LastPeriodIndex)
		}
		if w.FirstPeriodIndex != next || w.LastPeriodIndex >= len(t.periods) {
			return fmt.Errorf("%w: window %d covers periods [%d, %d], expected to start at %d",
				ErrInvalidTimeline, i, w.FirstPeriodIndex, w.LastPeriodIndex, next)
		}
		for p := w.FirstPeriodIndex; p <= w.LastPeriodIndex; p++ {
			if t.periods[p].WindowIndex != i {
				return fmt.Errorf("%w: period %d belongs to window %d, listed under window %d",
					ErrInvalidTimeline, p, t.periods[p].WindowIndex, i)
			}
		}
		next = w.LastPeriodIndex + 1
	}
	if next != len(t.periods) {
		return fmt.Errorf("%w: %d periods are not covered by any window", ErrInvalidTimeline, len(t.periods)-next)
	}
	for i, p := range t.periods {
		if err := p.Ads.Validate(); err != nil {
			return fmt.Errorf("%w: period %d: %w", ErrInvalidTimeline, i, err)
		}
	}
	return nil
}

// WindowCount returns the number of windows.
func (t *Timeline) WindowCount() int {
	return len(t.windows)
}

// PeriodCount returns the number of periods.
func (t *Timeline) PeriodCount() int {
	return len(t.periods)
}

// IsEmpty reports whether the timeline has no windows.
func (t *Timeline) IsEmpty() bool {
	return len(t.windows) == 0
}

// Window returns the window at index i.
func (t *Timeline) Window(i int) Window {
	return t.windows[i]
}

// Period returns the period at index i.
func (t *Timeline) Period(i int) Period {
	return t.periods[i]
}

// Shuffle returns the shuffle order of the timeline.
func (t *Timeline) Shuffle() *ShuffleOrder {
	return t.shuffle
}

// IndexOfPeriod returns the index of the period with the given uid.
func (t *Timeline) IndexOfPeriod(uid string) (int, bool) {
	for i := range t.periods {
		if t.periods[i].UID == uid {
			return i, true
		}
	}
	return IndexUnset, false
}

// PeriodByUID returns the period with the given uid.
func (t *Timeline) PeriodByUID(uid string) (Period, bool) {
	i, ok := t.IndexOfPeriod(uid)
	if !ok {
		return Period{}, false
	}
	return t.periods[i], true
}

// IndexOfWindow returns the index of the window with the given uid.
func (t *Timeline) IndexOfWindow(uid string) (int, bool) {
	for i := range t.windows {
		if t.windows[i].UID == uid {
			return i, true
		}
	}
	return IndexUnset, false
}

// FirstWindowIndex returns the first window in playback order, or IndexUnset if empty.
func (t *Timeline) FirstWindowIndex(shuffle bool) int {
	if t.IsEmpty() {
		return IndexUnset
	}
	if shuffle {
		return t.shuffle.First()
	}
	return 0
}

// LastWindowIndex returns the last window in playback order, or IndexUnset if empty.
func (t *Timeline) LastWindowIndex(shuffle bool) int {
	if t.IsEmpty() {
		return IndexUnset
	}
	if shuffle {
		return t.shuffle.Last()
	}
	return len(t.windows) - 1
}

// NextWindowIndex returns the window that plays after windowIndex.
func (t *Timeline) NextWindowIndex(windowIndex int, mode RepeatMode, shuffle bool) (int, bool) {
	switch mode {
	case RepeatOne:
		return windowIndex, true
	case RepeatAll:
		if windowIndex == t.LastWindowIndex(shuffle) {
			return t.FirstWindowIndex(shuffle), true
		}
	default:
		if windowIndex == t.LastWindowIndex(shuffle) {
			return IndexUnset, false
		}
	}
	if shuffle {
		return t.shuffle.Next(windowIndex), true
	}
	return windowIndex + 1, true
}

// PreviousWindowIndex returns the window that plays before windowIndex.
func (t *Timeline) PreviousWindowIndex(windowIndex int, mode RepeatMode, shuffle bool) (int, bool) {
	switch mode {
	case RepeatOne:
		return windowIndex, true
	case RepeatAll:
		if windowIndex == t.FirstWindowIndex(shuffle) {
			return t.LastWindowIndex(shuffle), true
		}
	default:
		if windowIndex == t.FirstWindowIndex(shuffle) {
			return IndexUnset, false
		}
	}
	if shuffle {
		return t.shuffle.Previous(windowIndex), true
	}
	return windowIndex - 1, true
}

// NextPeriodIndex returns the period that plays after periodIndex, crossing into the
// next window when periodIndex is the last period of its window.
func (t *Timeline) NextPeriodIndex(periodIndex int, mode RepeatMode, shuffle bool) (int, bool) {
	windowIndex := t.periods[periodIndex].WindowIndex
	if t.windows[windowIndex].LastPeriodIndex != periodIndex {
		return periodIndex + 1, true
	}
	next, ok := t.NextWindowIndex(windowIndex, mode, shuffle)
	if !ok {
		return IndexUnset, false
	}
	return t.windows[next].FirstPeriodIndex, true
}

// IsLastPeriod reports whether no period follows periodIndex.
func (t *Timeline) IsLastPeriod(periodIndex int, mode RepeatMode, shuffle bool) bool {
	_, ok := t.NextPeriodIndex(periodIndex, mode, shuffle)
	return !ok
}
