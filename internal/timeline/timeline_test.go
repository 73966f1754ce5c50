package timeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to build a timeline with n single-period windows of 10s each
func createTestTimeline(t *testing.T, n int, opts ...Option) *Timeline {
	t.Helper()
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = SinglePeriodEntry(fmt.Sprintf("w%d", i), 10_000_000, AdPlaybackState{})
	}
	tl, err := FromEntries(entries, opts...)
	require.NoError(t, err)
	return tl
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		windows []Window
		periods []Period
	}{
		{
			name:    "First period after last period",
			windows: []Window{{UID: "w", FirstPeriodIndex: 1, LastPeriodIndex: 0}},
			periods: []Period{{UID: "p"}, {UID: "q"}},
		},
		{
			name:    "Period range out of bounds",
			windows: []Window{{UID: "w", FirstPeriodIndex: 0, LastPeriodIndex: 2}},
			periods: []Period{{UID: "p"}},
		},
		{
			name:    "Period assigned to wrong window",
			windows: []Window{{UID: "w", FirstPeriodIndex: 0, LastPeriodIndex: 0}},
			periods: []Period{{UID: "p", WindowIndex: 3}},
		},
		{
			name:    "Uncovered periods",
			windows: []Window{{UID: "w", FirstPeriodIndex: 0, LastPeriodIndex: 0}},
			periods: []Period{{UID: "p"}, {UID: "q"}},
		},
		{
			name:    "Decreasing ad groups",
			windows: []Window{{UID: "w"}},
			periods: []Period{{UID: "p", Ads: AdPlaybackState{Groups: []AdGroup{{Time: 5}, {Time: 1}}}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tl, err := New(tc.windows, tc.periods)

			assert.Nil(t, tl)
			assert.ErrorIs(t, err, ErrInvalidTimeline)
		})
	}
}

func TestNew_ShuffleOrderMismatch(t *testing.T) {
	order, err := NewShuffleOrder([]int{1, 0, 2})
	require.NoError(t, err)

	_, err = FromEntries([]Entry{SinglePeriodEntry("a", 1, AdPlaybackState{})}, WithShuffleOrder(order))

	assert.ErrorIs(t, err, ErrInvalidTimeline)
}

func TestFromEntries_NoPeriods(t *testing.T) {
	_, err := FromEntries([]Entry{{Window: Window{UID: "w"}}})

	assert.ErrorIs(t, err, ErrInvalidTimeline)
}

func TestIndexOfPeriod(t *testing.T) {
	tl := createTestTimeline(t, 3)

	idx, ok := tl.IndexOfPeriod("w2")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	idx, ok = tl.IndexOfPeriod("stale")
	assert.False(t, ok)
	assert.Equal(t, IndexUnset, idx)

	_, ok = tl.PeriodByUID("stale")
	assert.False(t, ok)

	widx, ok := tl.IndexOfWindow("w1")
	assert.True(t, ok)
	assert.Equal(t, 1, widx)
}

func TestNextWindowIndex(t *testing.T) {
	tl := createTestTimeline(t, 3)

	testCases := []struct {
		name   string
		index  int
		mode   RepeatMode
		want   int
		wantOK bool
	}{
		{"Off middle", 1, RepeatOff, 2, true},
		{"Off last", 2, RepeatOff, IndexUnset, false},
		{"One loops", 2, RepeatOne, 2, true},
		{"All wraps", 2, RepeatAll, 0, true},
		{"All middle", 0, RepeatAll, 1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tl.NextWindowIndex(tc.index, tc.mode, false)

			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPreviousWindowIndex(t *testing.T) {
	tl := createTestTimeline(t, 3)

	got, ok := tl.PreviousWindowIndex(0, RepeatOff, false)
	assert.False(t, ok)
	assert.Equal(t, IndexUnset, got)

	got, ok = tl.PreviousWindowIndex(0, RepeatAll, false)
	assert.True(t, ok)
	assert.Equal(t, 2, got)

	got, ok = tl.PreviousWindowIndex(1, RepeatOne, false)
	assert.True(t, ok)
	assert.Equal(t, 1, got)
}

func TestNavigation_Shuffled(t *testing.T) {
	order, err := NewShuffleOrder([]int{2, 0, 1})
	require.NoError(t, err)
	tl := createTestTimeline(t, 3, WithShuffleOrder(order))

	assert.Equal(t, 2, tl.FirstWindowIndex(true))
	assert.Equal(t, 1, tl.LastWindowIndex(true))

	next, ok := tl.NextWindowIndex(2, RepeatOff, true)
	assert.True(t, ok)
	assert.Equal(t, 0, next)

	_, ok = tl.NextWindowIndex(1, RepeatOff, true)
	assert.False(t, ok)

	next, ok = tl.NextWindowIndex(1, RepeatAll, true)
	assert.True(t, ok)
	assert.Equal(t, 2, next)

	prev, ok := tl.PreviousWindowIndex(0, RepeatOff, true)
	assert.True(t, ok)
	assert.Equal(t, 2, prev)

	// Unshuffled navigation is unaffected by the order
	next, ok = tl.NextWindowIndex(0, RepeatOff, false)
	assert.True(t, ok)
	assert.Equal(t, 1, next)
}

func TestNextPeriodIndex_MultiPeriodWindow(t *testing.T) {
	tl, err := FromEntries([]Entry{
		{
			Window:  Window{UID: "a", Duration: TimeUnset},
			Periods: []Period{{UID: "a0", Duration: 1}, {UID: "a1", Duration: 1}},
		},
		SinglePeriodEntry("b", 1, AdPlaybackState{}),
	})
	require.NoError(t, err)

	next, ok := tl.NextPeriodIndex(0, RepeatOne, false)
	assert.True(t, ok)
	assert.Equal(t, 1, next, "periods inside a window advance regardless of repeat mode")

	next, ok = tl.NextPeriodIndex(1, RepeatOne, false)
	assert.True(t, ok)
	assert.Equal(t, 0, next, "repeat one loops back to the first period of the window")

	next, ok = tl.NextPeriodIndex(1, RepeatOff, false)
	assert.True(t, ok)
	assert.Equal(t, 2, next)

	assert.True(t, tl.IsLastPeriod(2, RepeatOff, false))
	assert.False(t, tl.IsLastPeriod(2, RepeatAll, false))
}

func TestEmptyTimeline(t *testing.T) {
	assert.True(t, Empty.IsEmpty())
	assert.Equal(t, IndexUnset, Empty.FirstWindowIndex(false))
	assert.Equal(t, IndexUnset, Empty.LastWindowIndex(true))
	_, ok := Empty.IndexOfPeriod("x")
	assert.False(t, ok)
}

func TestParseRepeatMode(t *testing.T) {
	for _, mode := range []RepeatMode{RepeatOff, RepeatOne, RepeatAll} {
		parsed, err := ParseRepeatMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := ParseRepeatMode("sometimes")
	assert.ErrorIs(t, err, ErrInvalidRepeatMode)
}

func TestWindow_ProjectedDefaultPosition(t *testing.T) {
	w := Window{IsDynamic: true, DefaultPosition: 1_000, Duration: 5_000}

	assert.Equal(t, int64(3_000), w.ProjectedDefaultPosition(2_000))
	assert.Equal(t, TimeUnset, w.ProjectedDefaultPosition(4_001))

	w.Duration = TimeUnset
	assert.Equal(t, TimeUnset, w.ProjectedDefaultPosition(1))
	assert.Equal(t, int64(1_000), w.ProjectedDefaultPosition(0))
}
