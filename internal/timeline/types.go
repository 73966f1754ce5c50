package timeline

import (
	"fmt"
	"math"
)

const (
	// TimeUnset marks a time value that is unknown or not set.
	TimeUnset int64 = math.MinInt64 + 1

	// TimeEndOfSource marks the end of a source. As an ad group time it denotes a post-roll.
	TimeEndOfSource int64 = math.MinInt64

	// IndexUnset is returned by index lookups that found nothing.
	IndexUnset = -1

	// CountUnset marks an ad group whose number of ads is not known yet.
	CountUnset = -1
)

// RepeatMode controls how window navigation behaves at the end of the timeline.
type RepeatMode int

const (
	// RepeatOff stops after the last window.
	RepeatOff RepeatMode = iota
	// RepeatOne loops the current window forever.
	RepeatOne
	// RepeatAll wraps from the last window back to the first one.
	RepeatAll
)

// String returns the string representation of RepeatMode
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseRepeatMode converts "off", "one" or "all" into a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "off", "":
		return RepeatOff, nil
	case "one":
		return RepeatOne, nil
	case "all":
		return RepeatAll, nil
	default:
		return RepeatOff, fmt.Errorf("%w: %q", ErrInvalidRepeatMode, s)
	}
}

// LiveConfiguration holds the live playback parameters of a dynamic window.
// The queue only carries them; live-edge estimation happens elsewhere.
type LiveConfiguration struct {
	TargetOffset int64   `json:"target_offset_us"`
	MinOffset    int64   `json:"min_offset_us"`
	MaxOffset    int64   `json:"max_offset_us"`
	MinSpeed     float64 `json:"min_speed"`
	MaxSpeed     float64 `json:"max_speed"`
}

// Window is one playable playlist entry and the region of its periods that is
// currently available.
type Window struct {
	// UID identifies the window across timeline snapshots.
	UID string `json:"uid"`

	// MediaItemID references the media item this window plays.
	MediaItemID string `json:"media_item_id"`

	IsSeekable bool `json:"is_seekable"`

	// IsDynamic is set when the next snapshot may change this window (live streams).
	IsDynamic bool `json:"is_dynamic"`

	Live *LiveConfiguration `json:"live,omitempty"`

	// DefaultPosition is the default start position relative to the window start,
	// or TimeUnset when it cannot be resolved yet.
	DefaultPosition int64 `json:"default_position_us"`

	// Duration is TimeUnset if unknown.
	Duration int64 `json:"duration_us"`

	FirstPeriodIndex int `json:"first_period_index"`
	LastPeriodIndex  int `json:"last_period_index"`

	// PositionInFirstPeriod is the window start relative to the start of its first period.
	PositionInFirstPeriod int64 `json:"position_in_first_period_us"`
}

// IsLive reports whether the window carries a live configuration.
func (w Window) IsLive() bool {
	return w.Live != nil
}

// ProjectedDefaultPosition returns the default position moved forward by projection.
// Only dynamic windows are projected; a projected position past the known duration,
// or any projection of a window with unknown duration, is unresolvable.
func (w Window) ProjectedDefaultPosition(projection int64) int64 {
	pos := w.DefaultPosition
	if !w.IsDynamic || projection == 0 || pos == TimeUnset {
		return pos
	}
	if w.Duration == TimeUnset {
		return TimeUnset
	}
	pos += projection
	if pos > w.Duration {
		return TimeUnset
	}
	return pos
}

// Period is one contiguous content region of a window.
type Period struct {
	UID         string `json:"uid"`
	WindowIndex int    `json:"window_index"`

	// Duration is TimeUnset if unknown. Once known it never shrinks.
	Duration int64 `json:"duration_us"`

	// PositionInWindow is the period start relative to the window start. May be negative.
	PositionInWindow int64 `json:"position_in_window_us"`

	Ads AdPlaybackState `json:"ads"`
}

// AdGroupCount returns the number of ad groups in the period.
func (p Period) AdGroupCount() int {
	return len(p.Ads.Groups)
}

// AdGroupTime returns the time of an ad group, TimeEndOfSource for a post-roll.
func (p Period) AdGroupTime(group int) int64 {
	return p.Ads.Groups[group].Time
}

// AdCountInGroup returns the number of ads in a group, or CountUnset.
func (p Period) AdCountInGroup(group int) int {
	return p.Ads.Groups[group].Count
}

// AdDuration returns the duration of one ad, or TimeUnset if unknown.
func (p Period) AdDuration(group, index int) int64 {
	g := p.Ads.Groups[group]
	if index < len(g.Durations) {
		return g.Durations[index]
	}
	return TimeUnset
}

// AdState returns the playback state of one ad.
func (p Period) AdState(group, index int) AdState {
	return p.Ads.Groups[group].stateAt(index)
}

// FirstAdIndexToPlay returns the first ad of a group that should be played.
func (p Period) FirstAdIndexToPlay(group int) int {
	return p.Ads.Groups[group].FirstAdIndexToPlay()
}

// NextAdIndexToPlay returns the ad that should play after lastPlayed within a group.
func (p Period) NextAdIndexToPlay(group, lastPlayed int) int {
	return p.Ads.Groups[group].NextAdIndexToPlay(lastPlayed)
}

// IsServerSideInsertedAdGroup reports whether the ads of a group are stitched into the content stream.
func (p Period) IsServerSideInsertedAdGroup(group int) bool {
	return p.Ads.Groups[group].IsServerSideInserted
}

// HasPlayedAdGroup reports whether any ad of the group was played.
func (p Period) HasPlayedAdGroup(group int) bool {
	return p.Ads.Groups[group].HasPlayedAds()
}

// ContentResumeOffset returns the offset added to the group time when content resumes.
func (p Period) ContentResumeOffset(group int) int64 {
	return p.Ads.Groups[group].ContentResumeOffset
}

// AdGroupIndexForPosition returns the ad group at or before position that still
// has ads to play, or IndexUnset.
func (p Period) AdGroupIndexForPosition(position int64) int {
	return p.Ads.AdGroupIndexForPosition(position, p.Duration)
}

// AdGroupIndexAfterPosition returns the first ad group after position that should
// still play, or IndexUnset.
func (p Period) AdGroupIndexAfterPosition(position int64) int {
	return p.Ads.AdGroupIndexAfterPosition(position, p.Duration)
}
