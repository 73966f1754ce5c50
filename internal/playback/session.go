// Package playback runs playback sessions: one control loop per session owns a
// media period queue and applies timeline updates and player commands to it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cadence/internal/config"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/queue"
	"github.com/stwalsh4118/cadence/internal/source"
	"github.com/stwalsh4118/cadence/internal/timeline"
)

// TickResult reports what a tick enqueued
type TickResult struct {
	Enqueued []queue.MediaPeriodID `json:"enqueued"`

	// Pending is set when the next unit waits for a timeline update.
	Pending bool `json:"pending"`

	// Ended is set once the loading holder is the last unit of the timeline.
	Ended bool `json:"ended"`
}

// State is a snapshot of a session
type State struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`

	RepeatMode string `json:"repeat_mode"`
	Shuffle    bool   `json:"shuffle"`

	TimelineSequence int64  `json:"timeline_sequence"`
	TimelineReason   string `json:"timeline_reason,omitempty"`
	Windows          int    `json:"windows"`

	RendererPosition int64 `json:"renderer_position_us"`
	MaxReadPosition  int64 `json:"max_read_position_us"`

	Pending bool `json:"pending"`
	Ended   bool `json:"ended"`

	// PendingSeek is a seek waiting for its ad group to become resolvable.
	PendingSeek *SeekTarget `json:"pending_seek,omitempty"`

	Start         *queue.StartPosition   `json:"start,omitempty"`
	Holders       []queue.HolderState    `json:"holders"`
	LastUpdate    *queue.Update          `json:"last_update,omitempty"`
	LastReconcile *queue.ReconcileResult `json:"last_reconcile,omitempty"`
}

// SeekTarget is a requested seek position in a window
type SeekTarget struct {
	WindowUID        string `json:"window_uid"`
	WindowPositionUs int64  `json:"window_position_us"`
}

// Session owns one queue. Every method is safe for concurrent use: work is handed
// to the session's control loop.
type Session struct {
	id        uuid.UUID
	channelID uuid.UUID
	createdAt time.Time
	order     uint64
	log       zerolog.Logger

	sub          *source.Subscription
	sink         *queue.ChannelSink
	tickInterval time.Duration

	commands chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	// Owned by the control loop
	q                *queue.Queue
	rendererPosition int64
	maxReadPosition  int64
	timelineSequence int64
	timelineReason   string
	lastUpdate       *queue.Update
	lastReconcile    *queue.ReconcileResult
	pending          bool
	ended            bool
	resumeWindowUID  string
	pendingSeek      *SeekTarget
}

func newSession(channelID uuid.UUID, initial *timeline.Timeline, sub *source.Subscription, mode timeline.RepeatMode, shuffle bool, cfg config.QueueConfig) *Session {
	id := uuid.New()
	s := &Session{
		id:              id,
		channelID:       channelID,
		createdAt:       time.Now().UTC(),
		log:             logger.Log.With().Str("session_id", id.String()).Str("channel_id", channelID.String()).Logger(),
		sub:             sub,
		sink:            queue.NewChannelSink(cfg.UpdateBuffer),
		tickInterval:    cfg.TickInterval,
		commands:        make(chan func()),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		maxReadPosition: timeline.TimeUnset,
	}
	s.q = queue.New(initial, queue.Options{
		MaxBufferAhead:  cfg.MaxBufferAhead,
		ProjectionLimit: cfg.ProjectionLimit.Microseconds(),
		Sink:            queue.SinkFunc(func(u queue.Update) {
			s.lastUpdate = &u
			s.sink.Publish(u)
		}),
	})
	s.q.SetRepeatMode(mode)
	s.q.SetShuffle(shuffle)
	return s
}

// ID returns the session id
func (s *Session) ID() uuid.UUID { return s.id }

// ChannelID returns the channel the session plays
func (s *Session) ChannelID() uuid.UUID { return s.channelID }

// Updates returns the queue updates of the session. When the consumer falls behind
// the oldest updates are dropped.
func (s *Session) Updates() <-chan queue.Update { return s.sink.Updates() }

// Done is closed when the control loop has exited
func (s *Session) Done() <-chan struct{} { return s.doneCh }

func (s *Session) start() {
	go s.run()
}

func (s *Session) run() {
	defer close(s.doneCh)

	s.fillLogged()

	var tick <-chan time.Time
	if s.tickInterval > 0 {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	updates := s.sub.Updates()

	for {
		select {
		case <-s.stopCh:
			return
		case fn := <-s.commands:
			fn()
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.applyTimeline(u)
		case <-tick:
			// Retries units that were waiting on the timeline
			if s.pending {
				s.fillLogged()
			}
		}
	}
}

// Stop ends the control loop and waits for it to exit
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.sub.Close()
		s.log.Info().Msg("Playback session stopped")
	})
}

// exec runs fn on the control loop. An invariant violation stops the session.
func (s *Session) exec(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				var inv *queue.InvariantError
				if err, ok := r.(error); ok && errors.As(err, &inv) {
					s.log.Error().Err(inv).Msg("Queue invariant violated, stopping session")
					go s.Stop()
					result <- fmt.Errorf("%w: %v", ErrSessionStopped, inv)
					return
				}
				panic(r)
			}
		}()
		result <- fn()
	}

	select {
	case s.commands <- run:
	case <-s.stopCh:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick records the renderer positions and enqueues ahead while the loading holder
// is fully buffered and the next unit can be resolved.
func (s *Session) Tick(ctx context.Context, rendererPosition, maxReadPosition int64) (TickResult, error) {
	var res TickResult
	err := s.exec(ctx, func() error {
		s.rendererPosition = rendererPosition
		s.maxReadPosition = maxReadPosition
		var err error
		res, err = s.fill()
		return err
	})
	return res, err
}

// MarkLoaded marks the loading holder prepared and fully buffered
func (s *Session) MarkLoaded(ctx context.Context) (queue.MediaPeriodID, error) {
	var id queue.MediaPeriodID
	err := s.exec(ctx, func() error {
		loading := s.q.Loading()
		if loading == nil {
			return ErrNoLoadingPeriod
		}
		loading.MarkFullyBuffered()
		id = loading.ID()
		return nil
	})
	return id, err
}

// AdvanceReading moves the reading holder to the next one
func (s *Session) AdvanceReading(ctx context.Context) (queue.MediaPeriodID, error) {
	var id queue.MediaPeriodID
	err := s.exec(ctx, func() error {
		reading := s.q.Reading()
		if reading == nil || s.q.Next(reading) == nil {
			return ErrNothingToAdvance
		}
		id = s.q.AdvanceReading().ID()
		return nil
	})
	return id, err
}

// AdvancePlaying releases the playing holder. The last holder may only be released
// when it ends the timeline, which ends the session's playback.
func (s *Session) AdvancePlaying(ctx context.Context) (*queue.MediaPeriodID, error) {
	var id *queue.MediaPeriodID
	err := s.exec(ctx, func() error {
		playing := s.q.Playing()
		if playing == nil {
			return ErrNothingToAdvance
		}
		if s.q.Next(playing) == nil && !playing.Info().IsLastInTimeline {
			return ErrNothingToAdvance
		}
		if next := s.q.AdvancePlaying(); next != nil {
			nextID := next.ID()
			id = &nextID
			return nil
		}
		s.ended = true
		s.log.Info().Msg("Reached end of timeline")
		return nil
	})
	return id, err
}

// SetMode changes the repeat mode and/or shuffle mode. Nil leaves a mode unchanged.
func (s *Session) SetMode(ctx context.Context, repeatMode *timeline.RepeatMode, shuffle *bool) (queue.ReconcileResult, error) {
	var result queue.ReconcileResult
	err := s.exec(ctx, func() error {
		if repeatMode != nil {
			result = merge(result, s.q.SetRepeatMode(*repeatMode))
		}
		if shuffle != nil {
			result = merge(result, s.q.SetShuffle(*shuffle))
		}
		s.lastReconcile = &result
		s.log.Debug().
			Str("repeat_mode", s.q.RepeatMode().String()).
			Bool("shuffle", s.q.Shuffle()).
			Int("removed", result.Removed).
			Msg("Playback mode changed")
		s.fillLogged()
		return nil
	})
	return result, err
}

// Seek restarts the queue at a position in a window. timeline.TimeUnset selects the
// window's default position. A seek into an ad group whose ads are not known yet
// leaves the queue as it is and is retried on the next timeline update or tick.
func (s *Session) Seek(ctx context.Context, windowIndex int, windowPosition int64) (queue.MediaPeriodID, error) {
	var id queue.MediaPeriodID
	err := s.exec(ctx, func() error {
		s.pendingSeek = nil
		var err error
		id, err = s.q.SeekToWindow(windowIndex, windowPosition)
		if err != nil {
			if queue.IsNotYetResolvable(err) {
				s.pendingSeek = &SeekTarget{
					WindowUID:        s.q.Timeline().Window(windowIndex).UID,
					WindowPositionUs: windowPosition,
				}
				s.pending = true
				s.log.Info().
					Str("window_uid", s.pendingSeek.WindowUID).
					Int64("position_us", windowPosition).
					Msg("Seek target not resolvable yet, will retry")
			}
			return err
		}
		s.ended = false
		s.pending = false
		s.fillLogged()
		return nil
	})
	return id, err
}

// Snapshot returns the current state of the session
func (s *Session) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := s.exec(ctx, func() error {
		st = s.state()
		return nil
	})
	return st, err
}

func (s *Session) state() State {
	st := State{
		ID:               s.id,
		ChannelID:        s.channelID,
		CreatedAt:        s.createdAt,
		RepeatMode:       s.q.RepeatMode().String(),
		Shuffle:          s.q.Shuffle(),
		TimelineSequence: s.timelineSequence,
		TimelineReason:   s.timelineReason,
		Windows:          s.q.Timeline().WindowCount(),
		RendererPosition: s.rendererPosition,
		MaxReadPosition:  s.maxReadPosition,
		Pending:          s.pending,
		Ended:            s.ended,
		PendingSeek:      s.pendingSeek,
		Holders:          s.q.Snapshot(),
		LastUpdate:       s.lastUpdate,
		LastReconcile:    s.lastReconcile,
	}
	if start, ok := s.q.Start(); ok {
		st.Start = &start
	}
	return st
}

func (s *Session) applyTimeline(u source.Update) {
	previous := s.q.Timeline()
	playing := s.q.Playing()

	result := s.q.Reconcile(u.Timeline, s.rendererPosition, s.maxReadPosition)
	s.lastReconcile = &result
	s.timelineSequence = u.Sequence
	s.timelineReason = u.Reason.String()

	s.log.Debug().
		Int64("timeline_sequence", u.Sequence).
		Stringer("reason", u.Reason).
		Int("removed", result.Removed).
		Bool("must_reseek", result.MustReseek()).
		Msg("Timeline applied")

	if result.PlayingRemoved && playing != nil {
		// Clear releases the holder, so read its id first
		playingID := playing.ID()
		s.resumeWindowUID = windowUIDOf(previous, playingID.PeriodUID)
		s.q.Clear()
		s.ended = false
		s.log.Info().
			Str("period_id", playingID.String()).
			Str("window_uid", s.resumeWindowUID).
			Msg("Playing period removed, seeking to window default position")
	}
	s.fillLogged()
}

func (s *Session) fillLogged() {
	if _, err := s.fill(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to enqueue media periods")
	}
}

// fill seeks to a default position when the chain is empty and then enqueues
// while the queue asks for more.
func (s *Session) fill() (TickResult, error) {
	var res TickResult
	s.pending = false

	if s.pendingSeek != nil {
		if err := s.retrySeek(); err != nil {
			return res, err
		}
	}
	if s.pendingSeek != nil {
		s.pending = true
		res.Pending = true
	}

	if s.q.Len() == 0 {
		if _, ok := s.q.Start(); !ok {
			if s.ended {
				res.Ended = true
				return res, nil
			}
			if err := s.seekDefault(); err != nil {
				if queue.IsNotYetResolvable(err) {
					s.pending = true
					res.Pending = true
					return res, nil
				}
				return res, err
			}
		}
	}

	for s.q.ShouldEnqueueNext() {
		h, err := s.q.EnqueueNext(s.rendererPosition, nil)
		switch {
		case err == nil:
			res.Enqueued = append(res.Enqueued, h.ID())
			continue
		case queue.IsEndOfTimeline(err):
		case queue.IsNotYetResolvable(err):
			s.pending = true
			res.Pending = true
		case errors.Is(err, queue.ErrQueueFull):
		default:
			return res, err
		}
		break
	}

	if loading := s.q.Loading(); loading != nil && loading.Info().IsLastInTimeline {
		res.Ended = true
	}
	if len(res.Enqueued) > 0 {
		s.resumeWindowUID = ""
	}
	return res, nil
}

// retrySeek repeats a seek that was not resolvable. The target is dropped once it
// succeeds or its window has left the timeline.
func (s *Session) retrySeek() error {
	target := s.pendingSeek
	index, ok := s.q.Timeline().IndexOfWindow(target.WindowUID)
	if !ok {
		s.pendingSeek = nil
		s.log.Info().Str("window_uid", target.WindowUID).Msg("Seek target window removed, dropping seek")
		return nil
	}
	id, err := s.q.SeekToWindow(index, target.WindowPositionUs)
	switch {
	case err == nil:
		s.pendingSeek = nil
		s.ended = false
		s.log.Info().Str("period_id", id.String()).Msg("Pending seek resolved")
		return nil
	case queue.IsNotYetResolvable(err):
		return nil
	default:
		s.pendingSeek = nil
		return err
	}
}

// seekDefault starts at the default position of the window to resume, or of the
// first window of the timeline.
func (s *Session) seekDefault() error {
	tl := s.q.Timeline()
	if tl.IsEmpty() {
		return fmt.Errorf("%w: empty timeline", queue.ErrNotYetResolvable)
	}
	index := tl.FirstWindowIndex(s.q.Shuffle())
	if s.resumeWindowUID != "" {
		if i, ok := tl.IndexOfWindow(s.resumeWindowUID); ok {
			index = i
		}
	}
	_, err := s.q.SeekToWindow(index, timeline.TimeUnset)
	return err
}

func windowUIDOf(tl *timeline.Timeline, periodUID string) string {
	p, ok := tl.PeriodByUID(periodUID)
	if !ok {
		return ""
	}
	return tl.Window(p.WindowIndex).UID
}

func merge(a, b queue.ReconcileResult) queue.ReconcileResult {
	return queue.ReconcileResult{
		Removed:            a.Removed + b.Removed,
		ReadingRemoved:     a.ReadingRemoved || b.ReadingRemoved,
		ReadBeyondDuration: a.ReadBeyondDuration || b.ReadBeyondDuration,
		PlayingRemoved:     a.PlayingRemoved || b.PlayingRemoved,
	}
}
