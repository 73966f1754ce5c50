package timeline

import "fmt"

// Entry is one window together with its periods, in order.
type Entry struct {
	Window  Window
	Periods []Period
}

// FromEntries builds a timeline from entries, filling in the window period ranges
// and the period window indices.
func FromEntries(entries []Entry, opts ...Option) (*Timeline, error) {
	windows := make([]Window, 0, len(entries))
	var periods []Period
	for i, e := range entries {
		if len(e.Periods) == 0 {
			return nil, fmt.Errorf("%w: window %d (%s) has no periods", ErrInvalidTimeline, i, e.Window.UID)
		}
		w := e.Window
		w.FirstPeriodIndex = len(periods)
		for _, p := range e.Periods {
			p.WindowIndex = i
			periods = append(periods, p)
		}
		w.LastPeriodIndex = len(periods) - 1
		windows = append(windows, w)
	}
	return New(windows, periods, opts...)
}

// SinglePeriodEntry describes a window made of one period of the given duration that
// starts at the window start.
func SinglePeriodEntry(uid string, duration int64, ads AdPlaybackState) Entry {
	return Entry{
		Window: Window{
			UID:             uid,
			MediaItemID:     uid,
			IsSeekable:      true,
			DefaultPosition: 0,
			Duration:        duration,
		},
		Periods: []Period{{
			UID:      uid,
			Duration: duration,
			Ads:      ads,
		}},
	}
}
