package queue

import (
	"sync/atomic"

	"github.com/stwalsh4118/cadence/internal/timeline"
)

// Holder is one in-flight unit of the chain. The loading pipeline reports progress
// through SetPrepared and SetBufferedPosition, which are safe to call from other
// goroutines. Everything else belongs to the goroutine that owns the queue.
type Holder struct {
	info           MediaPeriodInfo
	rendererOffset int64
	selection      any

	prepared atomic.Bool
	buffered atomic.Int64
	released atomic.Bool
}

func newHolder(info MediaPeriodInfo, rendererOffset int64, selection any) *Holder {
	h := &Holder{
		info:           info,
		rendererOffset: rendererOffset,
		selection:      selection,
	}
	h.buffered.Store(info.StartPosition)
	return h
}

func (h *Holder) checkLive(op string) {
	if h.released.Load() {
		panic(&InvariantError{Op: op, Cause: ErrHolderReleased})
	}
}

// Info returns the resolved unit of the holder.
func (h *Holder) Info() MediaPeriodInfo {
	h.checkLive("holder.Info")
	return h.info
}

// ID is shorthand for Info().ID.
func (h *Holder) ID() MediaPeriodID {
	return h.Info().ID
}

// RendererOffset converts period time to renderer time: renderer = period + offset.
func (h *Holder) RendererOffset() int64 {
	h.checkLive("holder.RendererOffset")
	return h.rendererOffset
}

// ToRendererTime converts a period position into renderer time.
func (h *Holder) ToRendererTime(periodPosition int64) int64 {
	return periodPosition + h.RendererOffset()
}

// ToPeriodTime converts a renderer position into period time.
func (h *Holder) ToPeriodTime(rendererPosition int64) int64 {
	return rendererPosition - h.RendererOffset()
}

// StartRendererTime is the renderer time at which the unit begins.
func (h *Holder) StartRendererTime() int64 {
	return h.ToRendererTime(h.Info().StartPosition)
}

// Selection returns the opaque track selection attached when the holder was enqueued.
func (h *Holder) Selection() any {
	h.checkLive("holder.Selection")
	return h.selection
}

// SetPrepared records that the unit's media is ready to be buffered.
func (h *Holder) SetPrepared() {
	h.checkLive("holder.SetPrepared")
	h.prepared.Store(true)
}

// IsPrepared reports whether SetPrepared was called.
func (h *Holder) IsPrepared() bool {
	return h.prepared.Load()
}

// SetBufferedPosition records how far the unit has been buffered, in period time.
// timeline.TimeEndOfSource means the unit is fully buffered.
func (h *Holder) SetBufferedPosition(position int64) {
	h.checkLive("holder.SetBufferedPosition")
	h.buffered.Store(position)
}

// MarkFullyBuffered records that the unit has been prepared and buffered to its end.
func (h *Holder) MarkFullyBuffered() {
	h.checkLive("holder.MarkFullyBuffered")
	h.prepared.Store(true)
	h.buffered.Store(timeline.TimeEndOfSource)
}

// BufferedPosition returns the buffered position in period time. A fully buffered
// unit reports its duration.
func (h *Holder) BufferedPosition() int64 {
	if !h.prepared.Load() {
		return h.info.StartPosition
	}
	b := h.buffered.Load()
	if b == timeline.TimeEndOfSource {
		return h.info.Duration
	}
	return b
}

// IsFullyBuffered reports whether the unit has been buffered to its end.
func (h *Holder) IsFullyBuffered() bool {
	return h.prepared.Load() && h.buffered.Load() == timeline.TimeEndOfSource
}

// IsReleased reports whether the holder has left the chain.
func (h *Holder) IsReleased() bool {
	return h.released.Load()
}

func (h *Holder) setInfo(info MediaPeriodInfo) {
	h.checkLive("holder.setInfo")
	h.info = info
}

func (h *Holder) release() {
	h.released.Store(true)
	h.selection = nil
}

// endRendererTime is where the next holder starts in renderer time, or false while
// the duration is unknown.
func (h *Holder) endRendererTime() (int64, bool) {
	if h.info.Duration == timeline.TimeUnset {
		return 0, false
	}
	return h.rendererOffset + h.info.Duration, true
}
