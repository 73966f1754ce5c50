package timeline

import (
	"fmt"
	"slices"
)

// AdState is the playback state of a single ad.
type AdState int

const (
	// AdStateUnavailable means the ad has not been loaded yet.
	AdStateUnavailable AdState = iota
	// AdStateAvailable means the ad can be played.
	AdStateAvailable
	// AdStatePlayed means the ad finished playing.
	AdStatePlayed
	// AdStateSkipped means the ad was skipped.
	AdStateSkipped
	// AdStateError means the ad failed to load.
	AdStateError
)

// String returns the string representation of AdState
func (s AdState) String() string {
	switch s {
	case AdStateUnavailable:
		return "unavailable"
	case AdStateAvailable:
		return "available"
	case AdStatePlayed:
		return "played"
	case AdStateSkipped:
		return "skipped"
	case AdStateError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseAdState converts a string produced by AdState.String back into an AdState.
func ParseAdState(s string) (AdState, error) {
	switch s {
	case "unavailable", "":
		return AdStateUnavailable, nil
	case "available":
		return AdStateAvailable, nil
	case "played":
		return AdStatePlayed, nil
	case "skipped":
		return AdStateSkipped, nil
	case "error":
		return AdStateError, nil
	default:
		return AdStateUnavailable, fmt.Errorf("%w: unknown ad state %q", ErrInvalidAdPlaybackState, s)
	}
}

// AdGroup is a set of ads scheduled at one position of a period.
type AdGroup struct {
	// Time is the group position in the period, TimeEndOfSource for a post-roll.
	Time int64 `json:"time_us"`

	// Count is the number of ads, CountUnset while unknown.
	Count int `json:"count"`

	States    []AdState `json:"states,omitempty"`
	Durations []int64   `json:"durations_us,omitempty"`

	// ContentResumeOffset is added to Time to get the content position after the group.
	ContentResumeOffset int64 `json:"content_resume_offset_us"`

	IsServerSideInserted bool `json:"is_server_side_inserted"`
}

func (g AdGroup) stateAt(index int) AdState {
	if index < len(g.States) {
		return g.States[index]
	}
	return AdStateUnavailable
}

// FirstAdIndexToPlay returns the index of the first ad that should be played.
// Equal to Count when every ad was played, skipped or failed.
func (g AdGroup) FirstAdIndexToPlay() int {
	return g.NextAdIndexToPlay(-1)
}

// NextAdIndexToPlay returns the index of the ad to play after lastPlayed.
// Server-side inserted ads are part of the stream and are never skipped over.
func (g AdGroup) NextAdIndexToPlay(lastPlayed int) int {
	next := lastPlayed + 1
	for next < len(g.States) {
		if g.IsServerSideInserted ||
			g.States[next] == AdStateUnavailable ||
			g.States[next] == AdStateAvailable {
			break
		}
		next++
	}
	return next
}

// HasUnplayedAds reports whether the group still has ads to play. Groups with an
// unknown count always do.
func (g AdGroup) HasUnplayedAds() bool {
	return g.Count == CountUnset || g.FirstAdIndexToPlay() < g.Count
}

// HasPlayedAds reports whether any ad of the group has been played.
func (g AdGroup) HasPlayedAds() bool {
	return slices.Contains(g.States, AdStatePlayed)
}

func (g AdGroup) clone() AdGroup {
	g.States = slices.Clone(g.States)
	g.Durations = slices.Clone(g.Durations)
	return g
}

// AdPlaybackState describes the ad groups of a period. It is treated as an
// immutable value: the With* methods return modified copies.
type AdPlaybackState struct {
	Groups []AdGroup `json:"groups,omitempty"`

	// AdResumePosition is the position to resume the first ad of a group at.
	AdResumePosition int64 `json:"ad_resume_position_us"`

	// RemovedAdGroupCount leading groups are ignored when looking for upcoming ads.
	RemovedAdGroupCount int `json:"removed_ad_group_count"`
}

// NewAdPlaybackState creates an ad playback state with one group per time, each with
// an unknown number of ads. Times must be non-decreasing; TimeEndOfSource may only
// appear last.
func NewAdPlaybackState(times ...int64) (AdPlaybackState, error) {
	groups := make([]AdGroup, len(times))
	for i, t := range times {
		groups[i] = AdGroup{Time: t, Count: CountUnset}
	}
	s := AdPlaybackState{Groups: groups}
	if err := s.Validate(); err != nil {
		return AdPlaybackState{}, err
	}
	return s, nil
}

// Validate checks the ordering and count invariants of the ad groups.
func (s AdPlaybackState) Validate() error {
	if s.RemovedAdGroupCount < 0 || s.RemovedAdGroupCount > len(s.Groups) {
		return fmt.Errorf("%w: removed ad group count %d out of range", ErrInvalidAdPlaybackState, s.RemovedAdGroupCount)
	}
	for i, g := range s.Groups {
		if g.Count < CountUnset {
			return fmt.Errorf("%w: ad group %d has count %d", ErrInvalidAdPlaybackState, i, g.Count)
		}
		if g.Count != CountUnset && len(g.States) > g.Count {
			return fmt.Errorf("%w: ad group %d has %d states for %d ads", ErrInvalidAdPlaybackState, i, len(g.States), g.Count)
		}
		if i == 0 {
			continue
		}
		prev := s.Groups[i-1].Time
		if prev == TimeEndOfSource {
			return fmt.Errorf("%w: post-roll ad group %d is not last", ErrInvalidAdPlaybackState, i-1)
		}
		if g.Time != TimeEndOfSource && g.Time < prev {
			return fmt.Errorf("%w: ad group %d at %d precedes group %d at %d", ErrInvalidAdPlaybackState, i, g.Time, i-1, prev)
		}
	}
	return nil
}

// AdGroupIndexForPosition returns the index of the last ad group at or before
// position that still has ads to play, or IndexUnset.
func (s AdPlaybackState) AdGroupIndexForPosition(position, periodDuration int64) int {
	// Linear search: TimeEndOfSource breaks monotonicity of the raw values.
	index := len(s.Groups) - 1
	for index >= 0 && s.isPositionBeforeAdGroup(position, periodDuration, index) {
		index--
	}
	if index >= 0 && s.Groups[index].HasUnplayedAds() {
		return index
	}
	return IndexUnset
}

// AdGroupIndexAfterPosition returns the index of the first ad group strictly after
// position that should still be played, or IndexUnset.
func (s AdPlaybackState) AdGroupIndexAfterPosition(position, periodDuration int64) int {
	if position == TimeEndOfSource || (periodDuration != TimeUnset && position >= periodDuration) {
		return IndexUnset
	}
	index := s.RemovedAdGroupCount
	for index < len(s.Groups) {
		g := s.Groups[index]
		if (g.Time == TimeEndOfSource || g.Time > position) && g.HasUnplayedAds() {
			return index
		}
		index++
	}
	return IndexUnset
}

func (s AdPlaybackState) isPositionBeforeAdGroup(position, periodDuration int64, group int) bool {
	if position == TimeEndOfSource {
		return false
	}
	g := s.Groups[group]
	if g.Time == TimeEndOfSource {
		return periodDuration == TimeUnset ||
			(g.IsServerSideInserted && g.Count == CountUnset) ||
			position < periodDuration
	}
	return position < g.Time
}

func (s AdPlaybackState) withGroup(group int, fn func(g *AdGroup)) AdPlaybackState {
	groups := slices.Clone(s.Groups)
	g := groups[group].clone()
	fn(&g)
	groups[group] = g
	s.Groups = groups
	return s
}

// WithAdCount sets the number of ads in a group.
func (s AdPlaybackState) WithAdCount(group, count int) AdPlaybackState {
	return s.withGroup(group, func(g *AdGroup) {
		g.Count = count
		g.States = resize(g.States, count, AdStateUnavailable)
		g.Durations = resize(g.Durations, count, TimeUnset)
	})
}

// WithAdState sets the state of one ad, growing the group's state list if needed.
func (s AdPlaybackState) WithAdState(group, index int, state AdState) AdPlaybackState {
	return s.withGroup(group, func(g *AdGroup) {
		if index >= len(g.States) {
			g.States = resize(g.States, index+1, AdStateUnavailable)
		}
		g.States[index] = state
	})
}

// WithPlayedAd marks one ad as played.
func (s AdPlaybackState) WithPlayedAd(group, index int) AdPlaybackState {
	return s.WithAdState(group, index, AdStatePlayed)
}

// WithSkippedAdGroup marks every ad of a group that has not been played as skipped.
// A group with an unknown count becomes an empty group.
func (s AdPlaybackState) WithSkippedAdGroup(group int) AdPlaybackState {
	return s.withGroup(group, func(g *AdGroup) {
		if g.Count == CountUnset {
			g.Count = 0
			g.States = nil
			g.Durations = nil
			return
		}
		for i, st := range g.States {
			if st == AdStateUnavailable || st == AdStateAvailable {
				g.States[i] = AdStateSkipped
			}
		}
	})
}

// WithAdDurations sets the ad durations of a group.
func (s AdPlaybackState) WithAdDurations(group int, durations ...int64) AdPlaybackState {
	return s.withGroup(group, func(g *AdGroup) {
		g.Durations = slices.Clone(durations)
		if g.Count != CountUnset {
			g.Durations = resize(g.Durations, g.Count, TimeUnset)
		}
	})
}

// WithContentResumeOffset sets the content resume offset of a group.
func (s AdPlaybackState) WithContentResumeOffset(group int, offset int64) AdPlaybackState {
	return s.withGroup(group, func(g *AdGroup) {
		g.ContentResumeOffset = offset
	})
}

// WithServerSideInserted flags a group as stitched into the content stream.
func (s AdPlaybackState) WithServerSideInserted(group int, ssai bool) AdPlaybackState {
	return s.withGroup(group, func(g *AdGroup) {
		g.IsServerSideInserted = ssai
	})
}

// WithAdResumePosition sets the position the first ad of a group resumes at.
func (s AdPlaybackState) WithAdResumePosition(position int64) AdPlaybackState {
	s.Groups = slices.Clone(s.Groups)
	s.AdResumePosition = position
	return s
}

func resize[T any](in []T, n int, fill T) []T {
	if n < 0 {
		n = 0
	}
	if len(in) >= n {
		return in[:n]
	}
	out := make([]T, n)
	copy(out, in)
	for i := len(in); i < n; i++ {
		out[i] = fill
	}
	return out
}
