package queue

import (
	"fmt"

	"github.com/stwalsh4118/cadence/internal/timeline"
)

// WindowSequence returns the window sequence number to use when the following unit
// enters a new window starting at periodUID.
type WindowSequence func(periodUID string) int64

// Resolver computes which unit plays at a position and which unit follows another.
// It never mutates the timeline; identical inputs give identical results.
type Resolver struct {
	Timeline   *timeline.Timeline
	RepeatMode timeline.RepeatMode
	Shuffle    bool

	// ProjectionLimit caps how far a dynamic window's default position is projected
	// forward by the buffered duration. Zero means no cap.
	ProjectionLimit int64
}

func (r Resolver) projection(bufferedDuration int64) int64 {
	p := max(0, bufferedDuration)
	if r.ProjectionLimit > 0 {
		p = min(p, r.ProjectionLimit)
	}
	return p
}

// ResolveForPosition returns the unit that plays at position in the period: the
// first playable ad of an ad group at or before position that still has ads to play,
// otherwise content up to the next ad group.
func (r Resolver) ResolveForPosition(periodUID string, position, windowSequenceNumber int64) (MediaPeriodID, error) {
	p, ok := r.Timeline.PeriodByUID(periodUID)
	if !ok {
		return MediaPeriodID{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, periodUID)
	}
	group := p.AdGroupIndexForPosition(position)
	if group == timeline.IndexUnset {
		return NewContentID(periodUID, windowSequenceNumber, p.AdGroupIndexAfterPosition(position)), nil
	}
	if p.AdCountInGroup(group) == timeline.CountUnset {
		return MediaPeriodID{}, fmt.Errorf("%w: ad count of group %d in %s unknown", ErrNotYetResolvable, group, periodUID)
	}
	return NewAdID(periodUID, group, p.FirstAdIndexToPlay(group), windowSequenceNumber), nil
}

// InfoFor builds the unit described by id. Content units are re-clipped from
// startPosition, so the next ad group of a content id is recomputed.
func (r Resolver) InfoFor(id MediaPeriodID, requestedContentPosition, startPosition int64) (MediaPeriodInfo, error) {
	p, ok := r.Timeline.PeriodByUID(id.PeriodUID)
	if !ok {
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, id.PeriodUID)
	}
	switch u := id.Unit.(type) {
	case Ad:
		if u.GroupIndex >= p.AdGroupCount() {
			return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
		}
		return r.adInfo(p, id.PeriodUID, u.GroupIndex, u.IndexInGroup, requestedContentPosition, id.WindowSequenceNumber), nil
	case Content:
		return r.contentInfo(p, id.PeriodUID, startPosition, requestedContentPosition, id.WindowSequenceNumber), nil
	default:
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
}

// Following returns the unit that logically follows current. bufferedDuration is
// the amount of media buffered ahead of the renderer when current ends; it projects
// the default position of a newly entered dynamic window.
func (r Resolver) Following(current MediaPeriodInfo, bufferedDuration int64, sequence WindowSequence) (MediaPeriodInfo, error) {
	if current.IsLastInPeriod {
		return r.firstInfoOfNextPeriod(current, bufferedDuration, sequence)
	}
	return r.followingInPeriod(current, bufferedDuration, sequence)
}

// Updated refreshes the duration, end position and last-flags of info against the
// resolver's timeline. The id and start position are kept.
func (r Resolver) Updated(info MediaPeriodInfo) (MediaPeriodInfo, error) {
	id := info.ID
	p, ok := r.Timeline.PeriodByUID(id.PeriodUID)
	if !ok {
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, id.PeriodUID)
	}

	out := info
	switch u := id.Unit.(type) {
	case Ad:
		if u.GroupIndex >= p.AdGroupCount() {
			return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
		}
		out.EndPosition = timeline.TimeUnset
		out.Duration = p.AdDuration(u.GroupIndex, u.IndexInGroup)
		out.IsFollowedByTransitionToSameStream = p.IsServerSideInsertedAdGroup(u.GroupIndex)
		out.IsLastInPeriod = false
		out.IsLastInWindow = false
		out.IsLastInTimeline = false
	case Content:
		next := u.NextAdGroupIndex
		if next >= p.AdGroupCount() {
			return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
		}
		switch {
		case next != timeline.IndexUnset:
			out.EndPosition = p.AdGroupTime(next)
		case info.EndPosition != timeline.TimeUnset:
			// Clipped at the content duration before a played post-roll; keep clipping.
			out.EndPosition = p.Duration
		default:
			out.EndPosition = timeline.TimeUnset
		}
		out.Duration = contentDuration(p, out.EndPosition)
		out.IsFollowedByTransitionToSameStream = next != timeline.IndexUnset && p.IsServerSideInsertedAdGroup(next)
		out.IsLastInPeriod = next == timeline.IndexUnset
		out.IsLastInWindow = r.isLastInWindow(id, out.IsLastInPeriod)
		out.IsLastInTimeline = r.isLastInTimeline(id, out.IsLastInPeriod)
	default:
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	return out, nil
}

func (r Resolver) followingInPeriod(current MediaPeriodInfo, bufferedDuration int64, sequence WindowSequence) (MediaPeriodInfo, error) {
	id := current.ID
	p, ok := r.Timeline.PeriodByUID(id.PeriodUID)
	if !ok {
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, id.PeriodUID)
	}

	switch u := id.Unit.(type) {
	case Ad:
		if u.GroupIndex >= p.AdGroupCount() {
			return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
		}
		count := p.AdCountInGroup(u.GroupIndex)
		if count == timeline.CountUnset {
			return MediaPeriodInfo{}, fmt.Errorf("%w: ad count of group %d in %s unknown", ErrNotYetResolvable, u.GroupIndex, id.PeriodUID)
		}
		if next := p.NextAdIndexToPlay(u.GroupIndex, u.IndexInGroup); next < count {
			return r.adInfo(p, id.PeriodUID, u.GroupIndex, next, current.RequestedContentPosition, id.WindowSequenceNumber), nil
		}

		// Ad group finished: resume content
		start := current.RequestedContentPosition
		if start == timeline.TimeUnset {
			// No recorded resume position: behave like entering a new window
			pos, ok := r.Timeline.PeriodPosition(p.WindowIndex, timeline.TimeUnset, r.projection(bufferedDuration))
			if !ok {
				return MediaPeriodInfo{}, fmt.Errorf("%w: default position of window %d", ErrNotYetResolvable, p.WindowIndex)
			}
			start = pos.Position
		}
		start = max(minStartAfterAdGroup(p, u.GroupIndex), start)
		return r.contentInfo(p, id.PeriodUID, start, current.RequestedContentPosition, id.WindowSequenceNumber), nil

	case Content:
		group := u.NextAdGroupIndex
		if group == timeline.IndexUnset {
			return r.firstInfoOfNextPeriod(current, bufferedDuration, sequence)
		}
		if group >= p.AdGroupCount() {
			return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
		}
		count := p.AdCountInGroup(group)
		if count == timeline.CountUnset {
			return MediaPeriodInfo{}, fmt.Errorf("%w: ad count of group %d in %s unknown", ErrNotYetResolvable, group, id.PeriodUID)
		}
		first := p.FirstAdIndexToPlay(group)
		playedSSAI := p.IsServerSideInsertedAdGroup(group) && first < count && p.AdState(group, first) == timeline.AdStatePlayed
		if first >= count || playedSSAI {
			// Nothing left to play in the group: continue with content after it
			start := minStartAfterAdGroup(p, group)
			return r.contentInfo(p, id.PeriodUID, start, current.Duration, id.WindowSequenceNumber), nil
		}
		return r.adInfo(p, id.PeriodUID, group, first, current.Duration, id.WindowSequenceNumber), nil

	default:
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
}

func (r Resolver) firstInfoOfNextPeriod(current MediaPeriodInfo, bufferedDuration int64, sequence WindowSequence) (MediaPeriodInfo, error) {
	tl := r.Timeline
	index, ok := tl.IndexOfPeriod(current.ID.PeriodUID)
	if !ok {
		return MediaPeriodInfo{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, current.ID.PeriodUID)
	}
	nextIndex, ok := tl.NextPeriodIndex(index, r.RepeatMode, r.Shuffle)
	if !ok {
		if tl.Window(tl.Period(index).WindowIndex).IsDynamic {
			return MediaPeriodInfo{}, fmt.Errorf("%w: window of %s may still grow", ErrNotYetResolvable, current.ID.PeriodUID)
		}
		return MediaPeriodInfo{}, ErrEndOfTimeline
	}

	next := tl.Period(nextIndex)
	periodUID := next.UID
	start := int64(0)
	contentPosition := int64(0)
	windowSequenceNumber := current.ID.WindowSequenceNumber

	if tl.Window(next.WindowIndex).FirstPeriodIndex == nextIndex {
		// Entering a new window: start from its default position, projected forward by
		// the buffered duration so the transition does not land behind the live edge.
		contentPosition = timeline.TimeUnset
		pos, ok := tl.PeriodPosition(next.WindowIndex, timeline.TimeUnset, r.projection(bufferedDuration))
		if !ok {
			return MediaPeriodInfo{}, fmt.Errorf("%w: default position of window %d", ErrNotYetResolvable, next.WindowIndex)
		}
		periodUID = pos.PeriodUID
		start = pos.Position
		windowSequenceNumber = sequence(periodUID)
	}

	id, err := r.ResolveForPosition(periodUID, start, windowSequenceNumber)
	if err != nil {
		return MediaPeriodInfo{}, err
	}
	return r.InfoFor(id, contentPosition, start)
}

func (r Resolver) adInfo(p timeline.Period, periodUID string, group, index int, contentPosition, windowSequenceNumber int64) MediaPeriodInfo {
	duration := p.AdDuration(group, index)
	start := int64(0)
	if index == p.FirstAdIndexToPlay(group) {
		start = p.Ads.AdResumePosition
	}
	if duration != timeline.TimeUnset && start >= duration {
		start = max(0, duration-1)
	}
	return MediaPeriodInfo{
		ID:                                 NewAdID(periodUID, group, index, windowSequenceNumber),
		StartPosition:                      start,
		RequestedContentPosition:           contentPosition,
		EndPosition:                        timeline.TimeUnset,
		Duration:                           duration,
		IsFollowedByTransitionToSameStream: p.IsServerSideInsertedAdGroup(group),
	}
}

func (r Resolver) contentInfo(p timeline.Period, periodUID string, start, requestedContentPosition, windowSequenceNumber int64) MediaPeriodInfo {
	start = max(0, start)
	next := p.AdGroupIndexAfterPosition(start)
	clipAtDuration := false
	if next == timeline.IndexUnset {
		// Server-side inserted streams end with the content itself
		removed := p.Ads.RemovedAdGroupCount
		clipAtDuration = removed < p.AdGroupCount() && p.IsServerSideInsertedAdGroup(removed)
	} else if p.IsServerSideInsertedAdGroup(next) && isAtPeriodEnd(p, next) && p.HasPlayedAdGroup(next) {
		// A played server-side post-roll contributes no content: stop at the period end
		next = timeline.IndexUnset
		clipAtDuration = true
	}

	id := NewContentID(periodUID, windowSequenceNumber, next)
	end := timeline.TimeUnset
	if next != timeline.IndexUnset {
		end = p.AdGroupTime(next)
	} else if clipAtDuration {
		end = p.Duration
	}
	duration := contentDuration(p, end)
	if duration != timeline.TimeUnset && start >= duration {
		start = max(0, duration-1)
	}

	lastInPeriod := next == timeline.IndexUnset
	return MediaPeriodInfo{
		ID:                                 id,
		StartPosition:                      start,
		RequestedContentPosition:           requestedContentPosition,
		EndPosition:                        end,
		Duration:                           duration,
		IsFollowedByTransitionToSameStream: next != timeline.IndexUnset && p.IsServerSideInsertedAdGroup(next),
		IsLastInPeriod:                     lastInPeriod,
		IsLastInWindow:                     r.isLastInWindow(id, lastInPeriod),
		IsLastInTimeline:                   r.isLastInTimeline(id, lastInPeriod),
	}
}

func (r Resolver) isLastInWindow(id MediaPeriodID, lastInPeriod bool) bool {
	if !lastInPeriod {
		return false
	}
	index, ok := r.Timeline.IndexOfPeriod(id.PeriodUID)
	if !ok {
		return false
	}
	w := r.Timeline.Window(r.Timeline.Period(index).WindowIndex)
	return w.LastPeriodIndex == index
}

func (r Resolver) isLastInTimeline(id MediaPeriodID, lastInPeriod bool) bool {
	if !lastInPeriod {
		return false
	}
	index, ok := r.Timeline.IndexOfPeriod(id.PeriodUID)
	if !ok {
		return false
	}
	w := r.Timeline.Window(r.Timeline.Period(index).WindowIndex)
	return !w.IsDynamic && r.Timeline.IsLastPeriod(index, r.RepeatMode, r.Shuffle)
}

func contentDuration(p timeline.Period, end int64) int64 {
	if end == timeline.TimeUnset || end == timeline.TimeEndOfSource {
		return p.Duration
	}
	return end
}

func minStartAfterAdGroup(p timeline.Period, group int) int64 {
	t := p.AdGroupTime(group)
	if t == timeline.TimeEndOfSource {
		return p.Duration
	}
	return t + p.ContentResumeOffset(group)
}

func isAtPeriodEnd(p timeline.Period, group int) bool {
	t := p.AdGroupTime(group)
	return t == timeline.TimeEndOfSource || (p.Duration != timeline.TimeUnset && t == p.Duration)
}
