package queue

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/cadence/internal/timeline"
)

// fill seeks to the first window and enqueues up to n units, marking each fully
// buffered so the next one may follow.
func fill(t *testing.T, q *Queue, n int) []*Holder {
	t.Helper()
	if q.Len() == 0 {
		_, err := q.SeekToWindow(q.Timeline().FirstWindowIndex(q.Shuffle()), timeline.TimeUnset)
		require.NoError(t, err)
	}
	var added []*Holder
	for len(added) < n && q.ShouldEnqueueNext() {
		h, err := q.EnqueueNext(InitialRendererPositionOffset, nil)
		if IsNotYetResolvable(err) {
			break
		}
		require.NoError(t, err)
		h.MarkFullyBuffered()
		added = append(added, h)
	}
	return added
}

func ids(q *Queue) []MediaPeriodID {
	var out []MediaPeriodID
	for _, h := range q.Holders() {
		out = append(out, h.ID())
	}
	return out
}

func threeWindows(t *testing.T) *timeline.Timeline {
	return buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, noAds()),
		timeline.SinglePeriodEntry("b", 10*sec, noAds()),
		timeline.SinglePeriodEntry("c", 10*sec, noAds()),
	)
}

func TestQueue_Empty(t *testing.T) {
	q := New(threeWindows(t), Options{})

	assert.Nil(t, q.Playing())
	assert.Nil(t, q.Reading())
	assert.Nil(t, q.Loading())
	assert.False(t, q.ShouldEnqueueNext())

	_, err := q.NextMediaPeriodInfo(0)
	assert.True(t, IsNotYetResolvable(err))

	_, err = q.SeekTo("missing", 0)
	assert.ErrorIs(t, err, ErrPeriodNotFound)

	requireInvariantPanic(t, ErrInvalidPrecondition, func() { q.AdvancePlaying() })
}

func TestQueue_FillsWholeTimeline(t *testing.T) {
	tl := buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, midrollAds(t, 4*sec, sec, 2*sec)),
		timeline.SinglePeriodEntry("b", 6*sec, noAds()),
	)
	q := New(tl, Options{})

	fill(t, q, 10)

	assert.Equal(t, []MediaPeriodID{
		NewContentID("a", 0, 0),
		NewAdID("a", 0, 0, 0),
		NewAdID("a", 0, 1, 0),
		NewContentID("a", 0, timeline.IndexUnset),
		NewContentID("b", 1, timeline.IndexUnset),
	}, ids(q))
	assert.True(t, q.Loading().Info().IsLastInTimeline)
	assert.False(t, q.ShouldEnqueueNext())

	_, err := q.NextMediaPeriodInfo(InitialRendererPositionOffset)
	assert.True(t, IsEndOfTimeline(err))

	// Renderer offsets continue exactly where the previous unit ends
	holders := q.Holders()
	for i := 1; i < len(holders); i++ {
		prev, next := holders[i-1], holders[i]
		assert.Equal(t,
			prev.RendererOffset()+prev.Info().Duration-next.Info().StartPosition,
			next.RendererOffset(),
			"offset of holder %d", i)
	}
}

func TestQueue_MaxBufferAhead(t *testing.T) {
	q := New(threeWindows(t), Options{MaxBufferAhead: 2})
	q.SetRepeatMode(timeline.RepeatAll)

	fill(t, q, 10)
	assert.Equal(t, 2, q.Len())
	assert.False(t, q.ShouldEnqueueNext())

	_, err := q.EnqueueNext(InitialRendererPositionOffset, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueue_AdvanceReadingAndPlaying(t *testing.T) {
	q := New(threeWindows(t), Options{})
	fill(t, q, 3)
	holders := q.Holders()

	assert.Same(t, holders[1], q.AdvanceReading())
	assert.Same(t, holders[0], q.Playing())

	assert.Same(t, holders[1], q.AdvancePlaying())
	assert.True(t, holders[0].IsReleased())
	assert.Same(t, holders[1], q.Reading())

	// Reading equal to playing moves along with it
	assert.Same(t, holders[2], q.AdvancePlaying())
	assert.Same(t, holders[2], q.Reading())

	requireInvariantPanic(t, ErrInvalidPrecondition, func() { q.AdvanceReading() })

	assert.Nil(t, q.AdvancePlaying())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_IsLoading(t *testing.T) {
	q := New(threeWindows(t), Options{})
	fill(t, q, 2)

	assert.True(t, q.IsLoading(q.Loading().ID()))
	assert.False(t, q.IsLoading(q.Playing().ID()))
}

func TestQueue_Updates(t *testing.T) {
	var got []Update
	q := New(threeWindows(t), Options{Sink: SinkFunc(func(u Update) { got = append(got, u) })})

	fill(t, q, 2)
	q.AdvanceReading()
	q.Clear()

	require.Len(t, got, 4)
	for i, u := range got {
		assert.Equal(t, int64(i+1), u.Sequence)
	}
	assert.Len(t, got[1].Periods, 2)
	require.NotNil(t, got[2].Reading)
	assert.Equal(t, got[1].Periods[1], *got[2].Reading)
	assert.Empty(t, got[3].Periods)
	assert.Nil(t, got[3].Reading)
}

func TestChannelSink_DropsOldest(t *testing.T) {
	sink := NewChannelSink(2)
	for i := int64(1); i <= 3; i++ {
		sink.Publish(Update{Sequence: i})
	}

	assert.Equal(t, int64(2), (<-sink.Updates()).Sequence)
	assert.Equal(t, int64(3), (<-sink.Updates()).Sequence)
}

func TestQueue_ReconcileIdempotent(t *testing.T) {
	tl := buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, midrollAds(t, 4*sec, sec)),
		timeline.SinglePeriodEntry("b", 10*sec, noAds()),
	)
	q := New(tl, Options{})
	fill(t, q, 4)
	before := ids(q)

	for range 3 {
		res := q.Reconcile(tl, InitialRendererPositionOffset, InitialRendererPositionOffset)
		assert.Equal(t, ReconcileResult{}, res)
		assert.Equal(t, before, ids(q))
	}
}

func TestQueue_ReconcileDivergence(t *testing.T) {
	preRoll := midrollAds(t, 0, 2*sec)

	tests := []struct {
		name        string
		readAhead   bool
		wantReadRm  bool
		wantReseek  bool
		wantRemoved int
	}{
		{"reading on playing", false, false, false, 2},
		{"reading on removed holder", true, true, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(threeWindows(t), Options{})
			fill(t, q, 3)
			if tt.readAhead {
				q.AdvanceReading()
			}

			// b gains a pre-roll, so the unit after a is now an ad
			changed := buildTimeline(t,
				timeline.SinglePeriodEntry("a", 10*sec, noAds()),
				timeline.SinglePeriodEntry("b", 10*sec, preRoll),
				timeline.SinglePeriodEntry("c", 10*sec, noAds()),
			)
			res := q.Reconcile(changed, InitialRendererPositionOffset, InitialRendererPositionOffset)

			assert.Equal(t, tt.wantRemoved, res.Removed)
			assert.Equal(t, tt.wantReadRm, res.ReadingRemoved)
			assert.Equal(t, tt.wantReseek, res.MustReseek())
			assert.Equal(t, 1, q.Len())
			assert.Same(t, q.Playing(), q.Reading())

			next, err := q.NextMediaPeriodInfo(InitialRendererPositionOffset)
			require.NoError(t, err)
			assert.True(t, next.ID.IsAd())
			assert.Equal(t, "b", next.ID.PeriodUID)
		})
	}
}

func TestQueue_ReconcileDurationChange(t *testing.T) {
	tests := []struct {
		name       string
		maxRead    int64
		wantBeyond bool
	}{
		{"read inside new duration", InitialRendererPositionOffset + 11*sec, false},
		{"read past new duration", InitialRendererPositionOffset + 13*sec, true},
		{"read to end of source", timeline.TimeEndOfSource, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(threeWindows(t), Options{})
			fill(t, q, 3)

			changed := buildTimeline(t,
				timeline.SinglePeriodEntry("a", 12*sec, noAds()),
				timeline.SinglePeriodEntry("b", 10*sec, noAds()),
				timeline.SinglePeriodEntry("c", 10*sec, noAds()),
			)
			res := q.Reconcile(changed, InitialRendererPositionOffset, tt.maxRead)

			assert.Equal(t, 2, res.Removed)
			assert.False(t, res.ReadingRemoved)
			assert.Equal(t, tt.wantBeyond, res.ReadBeyondDuration)
			assert.Equal(t, tt.wantBeyond, res.MustReseek())
			assert.Equal(t, 12*sec, q.Playing().Info().Duration)
		})
	}
}

func TestQueue_ReconcilePlayingRemoved(t *testing.T) {
	q := New(threeWindows(t), Options{})
	fill(t, q, 2)

	changed := buildTimeline(t, timeline.SinglePeriodEntry("c", 10*sec, noAds()))
	res := q.Reconcile(changed, InitialRendererPositionOffset, InitialRendererPositionOffset)

	assert.True(t, res.PlayingRemoved)
	assert.True(t, res.MustReseek())
	assert.Same(t, changed, q.Timeline())
}

func TestQueue_UnknownAdCountResolvesLater(t *testing.T) {
	unknown, err := timeline.NewAdPlaybackState(5 * sec)
	require.NoError(t, err)
	tl := buildTimeline(t, timeline.SinglePeriodEntry("a", 10*sec, unknown))
	q := New(tl, Options{})

	fill(t, q, 5)
	require.Equal(t, 1, q.Len())
	assert.True(t, q.ShouldEnqueueNext())

	_, err = q.EnqueueNext(InitialRendererPositionOffset, nil)
	assert.True(t, IsNotYetResolvable(err))
	assert.False(t, IsEndOfTimeline(err))

	known := buildTimeline(t, timeline.SinglePeriodEntry("a", 10*sec, unknown.WithAdCount(0, 1).WithAdDurations(0, sec)))
	res := q.Reconcile(known, InitialRendererPositionOffset, InitialRendererPositionOffset)
	assert.Equal(t, ReconcileResult{}, res)

	h, err := q.EnqueueNext(InitialRendererPositionOffset, nil)
	require.NoError(t, err)
	assert.Equal(t, NewAdID("a", 0, 0, 0), h.ID())
}

func TestQueue_ServerSidePostRollBoundary(t *testing.T) {
	ads, err := timeline.NewAdPlaybackState(10 * sec)
	require.NoError(t, err)
	ads = ads.WithAdCount(0, 1).WithAdDurations(0, 3*sec).WithServerSideInserted(0, true).WithPlayedAd(0, 0)
	q := New(buildTimeline(t, timeline.SinglePeriodEntry("a", 10*sec, ads)), Options{})

	fill(t, q, 5)
	require.Equal(t, 1, q.Len())

	info := q.Playing().Info()
	assert.True(t, info.IsLastInPeriod)
	assert.False(t, info.IsFollowedByTransitionToSameStream)
	assert.Equal(t, 10*sec, info.EndPosition)
	assert.False(t, q.ShouldEnqueueNext())
}

func TestQueue_RepeatAllSequenceNumbers(t *testing.T) {
	tl := buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, noAds()),
		timeline.SinglePeriodEntry("b", 10*sec, noAds()),
	)
	q := New(tl, Options{MaxBufferAhead: 4})
	q.SetRepeatMode(timeline.RepeatAll)

	fill(t, q, 4)

	assert.Equal(t, []MediaPeriodID{
		NewContentID("a", 0, timeline.IndexUnset),
		NewContentID("b", 1, timeline.IndexUnset),
		NewContentID("a", 2, timeline.IndexUnset),
		NewContentID("b", 3, timeline.IndexUnset),
	}, ids(q))
	for _, h := range q.Holders() {
		assert.False(t, h.Info().IsLastInTimeline)
	}
}

func TestQueue_RepeatOffToOneTruncates(t *testing.T) {
	q := New(threeWindows(t), Options{})
	fill(t, q, 3)
	playing := q.Playing()
	q.AdvanceReading()

	res := q.SetRepeatMode(timeline.RepeatOne)

	assert.Equal(t, 2, res.Removed)
	assert.True(t, res.ReadingRemoved)
	assert.True(t, res.MustReseek())
	assert.Equal(t, 1, q.Len())
	assert.Same(t, playing, q.Reading())

	next, err := q.NextMediaPeriodInfo(InitialRendererPositionOffset)
	require.NoError(t, err)
	assert.Equal(t, "a", next.ID.PeriodUID)
	assert.NotEqual(t, playing.ID().WindowSequenceNumber, next.ID.WindowSequenceNumber)
}

func TestQueue_RepeatModeKeepsMatchingHolders(t *testing.T) {
	q := New(threeWindows(t), Options{})
	q.SetRepeatMode(timeline.RepeatAll)
	fill(t, q, 3)

	res := q.SetRepeatMode(timeline.RepeatOff)
	assert.Equal(t, ReconcileResult{}, res)
	assert.Equal(t, 3, q.Len())
	assert.True(t, q.Loading().Info().IsLastInTimeline)
}

func TestQueue_ShuffleChangeTruncates(t *testing.T) {
	order, err := timeline.NewShuffleOrder([]int{0, 2, 1})
	require.NoError(t, err)
	tl, err := timeline.FromEntries([]timeline.Entry{
		timeline.SinglePeriodEntry("a", 10*sec, noAds()),
		timeline.SinglePeriodEntry("b", 10*sec, noAds()),
		timeline.SinglePeriodEntry("c", 10*sec, noAds()),
	}, timeline.WithShuffleOrder(order))
	require.NoError(t, err)

	q := New(tl, Options{})
	fill(t, q, 3)

	res := q.SetShuffle(true)
	assert.Equal(t, 2, res.Removed)
	assert.False(t, res.ReadingRemoved)

	next, err := q.NextMediaPeriodInfo(InitialRendererPositionOffset)
	require.NoError(t, err)
	assert.Equal(t, "c", next.ID.PeriodUID)
}

func TestQueue_SeekReusesWindowSequence(t *testing.T) {
	q := New(threeWindows(t), Options{})
	fill(t, q, 2)
	first := q.Playing().ID()

	id, err := q.SeekTo("a", 5*sec)
	require.NoError(t, err)
	assert.Equal(t, first.WindowSequenceNumber, id.WindowSequenceNumber)
	assert.Equal(t, 0, q.Len())

	start, ok := q.Start()
	require.True(t, ok)
	assert.Equal(t, 5*sec, start.Position)

	h, err := q.EnqueueNext(InitialRendererPositionOffset, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*sec, h.Info().StartPosition)
	_, ok = q.Start()
	assert.False(t, ok)

	other, err := q.SeekTo("c", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.WindowSequenceNumber, other.WindowSequenceNumber)
}

func TestQueue_SeekIntoUnresolvableGroupKeepsChain(t *testing.T) {
	unknown, err := timeline.NewAdPlaybackState(5 * sec)
	require.NoError(t, err)
	tl := buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, noAds()),
		timeline.SinglePeriodEntry("b", 10*sec, unknown),
	)
	q := New(tl, Options{})
	fill(t, q, 2)
	before := ids(q)
	require.Len(t, before, 2)
	require.Equal(t, NewContentID("b", 1, 0), before[1])

	_, err = q.SeekTo("b", 6*sec)
	require.True(t, IsNotYetResolvable(err))
	assert.Equal(t, before, ids(q))
	_, ok := q.Start()
	assert.False(t, ok)

	known := buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, noAds()),
		timeline.SinglePeriodEntry("b", 10*sec, unknown.WithAdCount(0, 1).WithAdDurations(0, sec)),
	)
	q.Reconcile(known, InitialRendererPositionOffset, InitialRendererPositionOffset)

	id, err := q.SeekTo("b", 6*sec)
	require.NoError(t, err)
	assert.Equal(t, NewAdID("b", 0, 0, 1), id)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_SeekClampsNegativePosition(t *testing.T) {
	q := New(threeWindows(t), Options{})

	_, err := q.SeekTo("a", -3*sec)
	require.NoError(t, err)
	start, ok := q.Start()
	require.True(t, ok)
	assert.Equal(t, int64(0), start.Position)

	h, err := q.EnqueueNext(InitialRendererPositionOffset, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), h.Info().StartPosition)
	assert.Equal(t, InitialRendererPositionOffset, h.StartRendererTime())
}

func TestQueue_RandomOperationsKeepChainConsistent(t *testing.T) {
	tl := buildTimeline(t,
		timeline.SinglePeriodEntry("a", 10*sec, midrollAds(t, 4*sec, sec, 2*sec)),
		timeline.SinglePeriodEntry("b", 8*sec, midrollAds(t, 0, sec)),
		timeline.SinglePeriodEntry("c", 6*sec, noAds()),
	)
	modes := []timeline.RepeatMode{timeline.RepeatOff, timeline.RepeatOne, timeline.RepeatAll}

	for _, seed := range []int64{3, 17, 256, 4096} {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			q := New(tl, Options{MaxBufferAhead: 6})
			q.SetRepeatMode(timeline.RepeatAll)

			for step := range 300 {
				switch rng.Intn(4) {
				case 0:
					if q.Len() == 0 {
						_, err := q.SeekToWindow(rng.Intn(tl.WindowCount()), timeline.TimeUnset)
						require.NoError(t, err)
					}
					if q.ShouldEnqueueNext() {
						h, err := q.EnqueueNext(InitialRendererPositionOffset, nil)
						if err == nil {
							h.MarkFullyBuffered()
						} else {
							require.True(t, IsEndOfTimeline(err), "step %d: %v", step, err)
						}
					}
				case 1:
					if r := q.Reading(); r != nil && q.Next(r) != nil {
						q.AdvanceReading()
					}
				case 2:
					if q.Len() > 0 {
						q.AdvancePlaying()
					}
				default:
					q.SetRepeatMode(modes[rng.Intn(len(modes))])
				}

				holders := q.Holders()
				if len(holders) == 0 {
					assert.Nil(t, q.Reading())
					continue
				}
				assert.Same(t, holders[0], q.Playing())
				assert.Same(t, holders[len(holders)-1], q.Loading())
				assert.Contains(t, holders, q.Reading())

				r := q.Resolver()
				for i := 1; i < len(holders); i++ {
					prev, cur := holders[i-1], holders[i]
					want, err := r.Following(prev.Info(), 0, func(string) int64 { return cur.ID().WindowSequenceNumber })
					require.NoError(t, err, "step %d", step)
					assert.Equal(t, want.ID, cur.ID(), "step %d", step)
					assert.Equal(t, want.StartPosition, cur.Info().StartPosition, "step %d", step)

					assert.Equal(t, prev.ToRendererTime(prev.Info().Duration), cur.StartRendererTime())
					assert.Greater(t, cur.StartRendererTime(), prev.StartRendererTime())
				}
			}
		})
	}
}

func TestQueue_Deterministic(t *testing.T) {
	run := func() []HolderState {
		tl := buildTimeline(t,
			timeline.SinglePeriodEntry("a", 10*sec, midrollAds(t, 4*sec, sec)),
			timeline.SinglePeriodEntry("b", 10*sec, noAds()),
		)
		q := New(tl, Options{MaxBufferAhead: 6})
		q.SetRepeatMode(timeline.RepeatAll)
		fill(t, q, 6)
		q.AdvanceReading()
		q.AdvancePlaying()
		q.Reconcile(tl, InitialRendererPositionOffset, InitialRendererPositionOffset)
		return q.Snapshot()
	}

	assert.Equal(t, run(), run())
}

func TestQueue_EnqueueAfterUnknownDurationPanics(t *testing.T) {
	live := timeline.SinglePeriodEntry("live", timeline.TimeUnset, noAds())
	live.Window.IsDynamic = true
	q := New(buildTimeline(t, live), Options{})

	_, err := q.SeekTo("live", 0)
	require.NoError(t, err)
	h, err := q.EnqueueNext(0, nil)
	require.NoError(t, err)
	h.MarkFullyBuffered()
	assert.False(t, q.ShouldEnqueueNext())

	requireInvariantPanic(t, ErrInvalidPrecondition, func() {
		_, _ = q.Enqueue(h.Info(), nil)
	})
}
