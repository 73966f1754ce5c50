package queue

import (
	"fmt"

	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/timeline"
)

// DefaultMaxBufferAhead is the default number of holders the queue keeps in flight.
const DefaultMaxBufferAhead = 100

// SequenceCounter hands out window sequence numbers. Every call to Next returns a
// value one greater than the previous one.
type SequenceCounter struct {
	next int64
}

// Next returns a fresh window sequence number.
func (c *SequenceCounter) Next() int64 {
	n := c.next
	c.next++
	return n
}

// Peek returns the number the next call to Next will return.
func (c *SequenceCounter) Peek() int64 {
	return c.next
}

// Options configures a Queue.
type Options struct {
	// MaxBufferAhead caps the chain length. Zero selects DefaultMaxBufferAhead.
	MaxBufferAhead int

	// ProjectionLimit caps window default position projection. Zero means no cap.
	ProjectionLimit int64

	// Sink receives an Update after every structural change. May be nil.
	Sink UpdateSink
}

// StartPosition is where the queue begins loading once the chain is empty.
type StartPosition struct {
	ID                       MediaPeriodID `json:"id"`
	Position                 int64         `json:"position_us"`
	RequestedContentPosition int64         `json:"requested_content_position_us"`
}

// ReconcileResult reports what reconciling the chain against a new timeline changed.
type ReconcileResult struct {
	// Removed is the number of holders released.
	Removed int `json:"removed"`

	// ReadingRemoved is set when the reading holder was among the removed ones.
	ReadingRemoved bool `json:"reading_removed"`

	// ReadBeyondDuration is set when renderers already read past the new end of the
	// reading holder.
	ReadBeyondDuration bool `json:"read_beyond_duration"`

	// PlayingRemoved is set when the playing unit no longer exists in the timeline.
	// The chain is left untouched; the caller must seek.
	PlayingRemoved bool `json:"playing_removed"`
}

// MustReseek reports whether the renderers have to be reset to the playing position.
func (r ReconcileResult) MustReseek() bool {
	return r.ReadingRemoved || r.ReadBeyondDuration || r.PlayingRemoved
}

// HolderState is a read-only view of one holder.
type HolderState struct {
	Info             MediaPeriodInfo `json:"info"`
	RendererOffset   int64           `json:"renderer_offset_us"`
	Playing          bool            `json:"playing"`
	Reading          bool            `json:"reading"`
	Loading          bool            `json:"loading"`
	Prepared         bool            `json:"prepared"`
	FullyBuffered    bool            `json:"fully_buffered"`
	BufferedPosition int64           `json:"buffered_position_us"`
}

// Queue keeps the chain of in-flight units consistent with the timeline, the repeat
// mode and the shuffle mode. It is not safe for concurrent use.
type Queue struct {
	chain Chain
	tl    *timeline.Timeline

	repeatMode timeline.RepeatMode
	shuffle    bool

	maxBufferAhead  int
	projectionLimit int64

	sequence SequenceCounter

	// Front of the last cleared or drained chain, used to keep window sequence
	// numbers stable across seeks.
	oldFrontUID string
	oldFrontSeq int64
	hasOldFront bool

	start *StartPosition

	sink    UpdateSink
	updates int64
}

// New creates an empty queue over tl.
func New(tl *timeline.Timeline, opts Options) *Queue {
	if tl == nil {
		tl = timeline.Empty
	}
	if opts.MaxBufferAhead <= 0 {
		opts.MaxBufferAhead = DefaultMaxBufferAhead
	}
	return &Queue{
		tl:              tl,
		maxBufferAhead:  opts.MaxBufferAhead,
		projectionLimit: opts.ProjectionLimit,
		sink:            opts.Sink,
	}
}

// Timeline returns the snapshot the queue currently works against.
func (q *Queue) Timeline() *timeline.Timeline { return q.tl }

// RepeatMode returns the current repeat mode.
func (q *Queue) RepeatMode() timeline.RepeatMode { return q.repeatMode }

// Shuffle reports whether shuffle mode is enabled.
func (q *Queue) Shuffle() bool { return q.shuffle }

// Len returns the number of holders in the chain.
func (q *Queue) Len() int { return q.chain.Len() }

// Playing returns the playing holder, or nil.
func (q *Queue) Playing() *Holder { return q.chain.Playing() }

// Reading returns the reading holder, or nil.
func (q *Queue) Reading() *Holder { return q.chain.Reading() }

// Loading returns the loading holder, or nil.
func (q *Queue) Loading() *Holder { return q.chain.Loading() }

// Holders returns the chain from playing to loading.
func (q *Queue) Holders() []*Holder { return q.chain.Holders() }

// Next returns the holder after h, or nil.
func (q *Queue) Next(h *Holder) *Holder { return q.chain.Next(h) }

// Start returns the pending start position, if any.
func (q *Queue) Start() (StartPosition, bool) {
	if q.start == nil {
		return StartPosition{}, false
	}
	return *q.start, true
}

// IsLoading reports whether id is the unit of the loading holder.
func (q *Queue) IsLoading(id MediaPeriodID) bool {
	loading := q.chain.Loading()
	return loading != nil && loading.info.ID == id
}

// Resolver returns a resolver over the queue's timeline and modes.
func (q *Queue) Resolver() Resolver {
	return Resolver{
		Timeline:        q.tl,
		RepeatMode:      q.repeatMode,
		Shuffle:         q.shuffle,
		ProjectionLimit: q.projectionLimit,
	}
}

// Snapshot returns a view of every holder from playing to loading.
func (q *Queue) Snapshot() []HolderState {
	holders := q.chain.Holders()
	reading := q.chain.Reading()
	out := make([]HolderState, len(holders))
	for i, h := range holders {
		out[i] = HolderState{
			Info:             h.info,
			RendererOffset:   h.rendererOffset,
			Playing:          i == 0,
			Reading:          h == reading,
			Loading:          i == len(holders)-1,
			Prepared:         h.IsPrepared(),
			FullyBuffered:    h.IsFullyBuffered(),
			BufferedPosition: h.BufferedPosition(),
		}
	}
	return out
}

// ShouldEnqueueNext reports whether the loading pipeline should ask for another unit:
// either the chain is empty and a start position is pending, or the loading holder
// is fully buffered, has a known duration, is not the end of the timeline and the
// chain is below its cap.
func (q *Queue) ShouldEnqueueNext() bool {
	loading := q.chain.Loading()
	if loading == nil {
		return q.start != nil
	}
	return !loading.info.IsLastInTimeline &&
		loading.IsFullyBuffered() &&
		loading.info.Duration != timeline.TimeUnset &&
		q.chain.Len() < q.maxBufferAhead
}

// ResolveForSeek returns the unit that plays at position in the period, assigning
// the window sequence number the way a seek would.
func (q *Queue) ResolveForSeek(periodUID string, position int64) (MediaPeriodID, error) {
	if _, ok := q.tl.IndexOfPeriod(periodUID); !ok {
		return MediaPeriodID{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, periodUID)
	}
	return q.Resolver().ResolveForPosition(periodUID, position, q.windowSequenceFor(periodUID))
}

// SeekTo resolves the unit at position while the chain is still intact, so a
// queued unit of the same window keeps its sequence number, then clears the chain
// and sets the start position for the next enqueue. On error the chain is left
// untouched. Negative positions are treated as the period start.
func (q *Queue) SeekTo(periodUID string, position int64) (MediaPeriodID, error) {
	position = max(0, position)
	id, err := q.ResolveForSeek(periodUID, position)
	if err != nil {
		return MediaPeriodID{}, err
	}
	q.Clear()
	q.oldFrontUID = id.PeriodUID
	q.oldFrontSeq = id.WindowSequenceNumber
	q.hasOldFront = true
	q.start = &StartPosition{ID: id, Position: position, RequestedContentPosition: position}
	logger.Log.Debug().
		Str("period_id", id.String()).
		Int64("position_us", position).
		Msg("Queue seek")
	return id, nil
}

// SeekToWindow seeks to a position in a window, or to its default position when
// windowPosition is TimeUnset.
func (q *Queue) SeekToWindow(windowIndex int, windowPosition int64) (MediaPeriodID, error) {
	if windowIndex < 0 || windowIndex >= q.tl.WindowCount() {
		return MediaPeriodID{}, fmt.Errorf("%w: window %d", ErrPeriodNotFound, windowIndex)
	}
	pos, ok := q.tl.PeriodPosition(windowIndex, windowPosition, 0)
	if !ok {
		return MediaPeriodID{}, fmt.Errorf("%w: default position of window %d", ErrNotYetResolvable, windowIndex)
	}
	return q.SeekTo(pos.PeriodUID, pos.Position)
}

// NextMediaPeriodInfo returns the unit to enqueue next: the pending start position
// for an empty chain, otherwise the unit following the loading holder.
func (q *Queue) NextMediaPeriodInfo(rendererPosition int64) (MediaPeriodInfo, error) {
	loading := q.chain.Loading()
	if loading == nil {
		if q.start == nil {
			return MediaPeriodInfo{}, fmt.Errorf("%w: no start position", ErrNotYetResolvable)
		}
		return q.Resolver().InfoFor(q.start.ID, q.start.RequestedContentPosition, q.start.Position)
	}
	return q.following(q.Resolver(), loading, rendererPosition)
}

// Enqueue appends a holder for info behind the loading holder.
func (q *Queue) Enqueue(info MediaPeriodInfo, selection any) (*Holder, error) {
	if q.chain.Len() >= q.maxBufferAhead {
		return nil, ErrQueueFull
	}
	h := q.chain.Append(info, selection)
	q.hasOldFront = false
	q.start = nil
	logger.Log.Debug().
		Str("period_id", info.ID.String()).
		Int64("renderer_offset_us", h.rendererOffset).
		Int("length", q.chain.Len()).
		Msg("Enqueued media period")
	q.notify()
	return h, nil
}

// EnqueueNext resolves the next unit and enqueues it.
func (q *Queue) EnqueueNext(rendererPosition int64, selection any) (*Holder, error) {
	if q.chain.Len() >= q.maxBufferAhead {
		return nil, ErrQueueFull
	}
	info, err := q.NextMediaPeriodInfo(rendererPosition)
	if err != nil {
		return nil, err
	}
	return q.Enqueue(info, selection)
}

// AdvanceReading moves the reading holder forward by one.
func (q *Queue) AdvanceReading() *Holder {
	h := q.chain.AdvanceReading()
	q.notify()
	return h
}

// AdvancePlaying releases the playing holder and returns the new one, or nil when the
// chain became empty.
func (q *Queue) AdvancePlaying() *Holder {
	playing := q.chain.Playing()
	mustf(playing != nil, "queue.AdvancePlaying", "no playing holder")
	if q.chain.Len() == 1 {
		q.rememberFront(playing)
	}
	q.chain.ReleaseFront()
	q.notify()
	return q.chain.Playing()
}

// Clear releases every holder, remembering the playing unit for sequence reuse.
func (q *Queue) Clear() {
	q.start = nil
	if playing := q.chain.Playing(); playing != nil {
		q.rememberFront(playing)
		removed := q.chain.Clear()
		logger.Log.Debug().Int("removed", removed).Msg("Cleared media period queue")
		q.notify()
	}
}

// Reconcile adopts tl and re-derives every holder against it. The playing holder is
// refreshed in place; every later holder must match the unit that now follows its
// predecessor, otherwise it and everything after it is released.
func (q *Queue) Reconcile(tl *timeline.Timeline, rendererPosition, maxReadPosition int64) ReconcileResult {
	if tl == nil {
		tl = timeline.Empty
	}
	q.tl = tl
	r := q.Resolver()

	var result ReconcileResult
	reading := q.chain.Reading()
	holders := q.chain.Holders()
	for i, h := range holders {
		old := h.info
		var updated MediaPeriodInfo
		var err error
		if i == 0 {
			updated, err = r.Updated(old)
			if err != nil {
				logger.Log.Warn().Err(err).Str("period_id", old.ID.String()).Msg("Playing media period left the timeline")
				result.PlayingRemoved = true
				return result
			}
		} else {
			prev := holders[i-1]
			updated, err = q.following(r, prev, rendererPosition)
			if err != nil || !sameUnit(old, updated) {
				result.Removed, result.ReadingRemoved = q.truncateAfter(prev)
				logger.Log.Warn().
					Str("period_id", old.ID.String()).
					Int("removed", result.Removed).
					Bool("reading_removed", result.ReadingRemoved).
					Msg("Queue diverged from timeline")
				return result
			}
		}

		h.setInfo(updated.WithRequestedContentPosition(old.RequestedContentPosition))

		if old.Duration != updated.Duration {
			if h == reading && updated.Duration != timeline.TimeUnset && !updated.IsFollowedByTransitionToSameStream {
				end := h.ToRendererTime(updated.Duration)
				result.ReadBeyondDuration = maxReadPosition == timeline.TimeEndOfSource || maxReadPosition >= end
			}
			result.Removed, result.ReadingRemoved = q.truncateAfter(h)
			logger.Log.Debug().
				Str("period_id", updated.ID.String()).
				Int64("old_duration_us", old.Duration).
				Int64("new_duration_us", updated.Duration).
				Int("removed", result.Removed).
				Msg("Media period duration changed")
			return result
		}
	}
	return result
}

// SetRepeatMode changes the repeat mode and drops holders that no longer follow.
func (q *Queue) SetRepeatMode(mode timeline.RepeatMode) ReconcileResult {
	q.repeatMode = mode
	return q.updateForPlaybackModeChange()
}

// SetShuffle changes the shuffle mode and drops holders that no longer follow.
func (q *Queue) SetShuffle(enabled bool) ReconcileResult {
	q.shuffle = enabled
	return q.updateForPlaybackModeChange()
}

// updateForPlaybackModeChange keeps the longest prefix of the chain whose period
// transitions still match the timeline's navigation and releases the rest.
func (q *Queue) updateForPlaybackModeChange() ReconcileResult {
	holders := q.chain.Holders()
	if len(holders) == 0 {
		return ReconcileResult{}
	}
	index, ok := q.tl.IndexOfPeriod(holders[0].info.ID.PeriodUID)
	if !ok {
		return ReconcileResult{}
	}

	last := 0
	for {
		for last+1 < len(holders) && !holders[last].info.IsLastInPeriod {
			last++
		}
		nextIndex, ok := q.tl.NextPeriodIndex(index, q.repeatMode, q.shuffle)
		if !ok || last+1 >= len(holders) {
			break
		}
		got, found := q.tl.IndexOfPeriod(holders[last+1].info.ID.PeriodUID)
		if !found || got != nextIndex {
			break
		}
		last++
		index = nextIndex
	}

	tail := holders[last]
	var result ReconcileResult
	result.Removed, result.ReadingRemoved = q.truncateAfter(tail)
	if updated, err := q.Resolver().Updated(tail.info); err == nil {
		tail.setInfo(updated)
	}
	if result.Removed > 0 {
		logger.Log.Debug().
			Str("repeat_mode", q.repeatMode.String()).
			Bool("shuffle", q.shuffle).
			Int("removed", result.Removed).
			Msg("Playback mode change truncated queue")
	}
	return result
}

func (q *Queue) truncateAfter(h *Holder) (int, bool) {
	removed, readingRemoved := q.chain.TruncateAfter(h)
	if removed > 0 {
		q.notify()
	}
	return removed, readingRemoved
}

// following resolves the unit after h. A new window reuses the sequence number of
// the holder already queued after h when it is for the same period.
func (q *Queue) following(r Resolver, h *Holder, rendererPosition int64) (MediaPeriodInfo, error) {
	buffered := int64(0)
	if end, ok := h.endRendererTime(); ok {
		buffered = end - rendererPosition
	}
	sequence := func(periodUID string) int64 {
		if next := q.chain.Next(h); next != nil && next.info.ID.PeriodUID == periodUID {
			return next.info.ID.WindowSequenceNumber
		}
		return q.sequence.Next()
	}
	return r.Following(h.info, buffered, sequence)
}

// windowSequenceFor picks the window sequence number for a unit of periodUID that
// is about to start playing after a seek.
func (q *Queue) windowSequenceFor(periodUID string) int64 {
	p, known := q.tl.PeriodByUID(periodUID)
	if q.hasOldFront && known {
		if front, ok := q.tl.PeriodByUID(q.oldFrontUID); ok && front.WindowIndex == p.WindowIndex {
			return q.oldFrontSeq
		}
	}
	for _, h := range q.chain.holders {
		if h.info.ID.PeriodUID == periodUID {
			return h.info.ID.WindowSequenceNumber
		}
	}

	if known {
		for _, h := range q.chain.holders {
			if hp, ok := q.tl.PeriodByUID(h.info.ID.PeriodUID); ok && hp.WindowIndex == p.WindowIndex {
				return h.info.ID.WindowSequenceNumber
			}
		}
	}

	seq := q.sequence.Next()
	if q.chain.Len() == 0 {
		q.oldFrontUID = periodUID
		q.oldFrontSeq = seq
		q.hasOldFront = true
	}
	return seq
}

func (q *Queue) rememberFront(h *Holder) {
	q.oldFrontUID = h.info.ID.PeriodUID
	q.oldFrontSeq = h.info.ID.WindowSequenceNumber
	q.hasOldFront = true
}

func (q *Queue) notify() {
	if q.sink == nil {
		return
	}
	q.updates++
	u := Update{Sequence: q.updates, Periods: make([]MediaPeriodID, 0, q.chain.Len())}
	for _, h := range q.chain.holders {
		u.Periods = append(u.Periods, h.info.ID)
	}
	if reading := q.chain.Reading(); reading != nil {
		id := reading.info.ID
		u.Reading = &id
	}
	q.sink.Publish(u)
}

func sameUnit(a, b MediaPeriodInfo) bool {
	return a.ID == b.ID && a.StartPosition == b.StartPosition
}
