package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdPlaybackState(t *testing.T) {
	s, err := NewAdPlaybackState(0, 5_000_000, TimeEndOfSource)
	require.NoError(t, err)
	require.Len(t, s.Groups, 3)
	for _, g := range s.Groups {
		assert.Equal(t, CountUnset, g.Count)
	}

	_, err = NewAdPlaybackState(5_000_000, 1_000_000)
	assert.ErrorIs(t, err, ErrInvalidAdPlaybackState)

	_, err = NewAdPlaybackState(TimeEndOfSource, 1_000_000)
	assert.ErrorIs(t, err, ErrInvalidAdPlaybackState)
}

func TestAdPlaybackState_BuildersCopyOnWrite(t *testing.T) {
	base, err := NewAdPlaybackState(1_000_000)
	require.NoError(t, err)

	withCount := base.WithAdCount(0, 2)
	played := withCount.WithPlayedAd(0, 0)

	assert.Equal(t, CountUnset, base.Groups[0].Count)
	assert.Equal(t, 2, withCount.Groups[0].Count)
	assert.Equal(t, AdStateUnavailable, withCount.Groups[0].States[0])
	assert.Equal(t, AdStatePlayed, played.Groups[0].States[0])
	assert.Equal(t, []int64{TimeUnset, TimeUnset}, withCount.Groups[0].Durations)
}

func TestAdGroup_FirstAdIndexToPlay(t *testing.T) {
	testCases := []struct {
		name   string
		states []AdState
		ssai   bool
		want   int
	}{
		{"No states", nil, false, 0},
		{"First available", []AdState{AdStateAvailable, AdStateAvailable}, false, 0},
		{"Skips played and skipped", []AdState{AdStatePlayed, AdStateSkipped, AdStateAvailable}, false, 2},
		{"Skips errors", []AdState{AdStateError, AdStateUnavailable}, false, 1},
		{"All played", []AdState{AdStatePlayed, AdStatePlayed}, false, 2},
		{"Server-side inserted never skips", []AdState{AdStatePlayed, AdStatePlayed}, true, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := AdGroup{Count: len(tc.states), States: tc.states, IsServerSideInserted: tc.ssai}

			assert.Equal(t, tc.want, g.FirstAdIndexToPlay())
		})
	}
}

func TestAdGroup_HasUnplayedAds(t *testing.T) {
	assert.True(t, AdGroup{Count: CountUnset}.HasUnplayedAds())
	assert.False(t, AdGroup{Count: 0}.HasUnplayedAds())
	assert.False(t, AdGroup{Count: 1, States: []AdState{AdStatePlayed}}.HasUnplayedAds())
	assert.True(t, AdGroup{Count: 2, States: []AdState{AdStatePlayed, AdStateAvailable}}.HasUnplayedAds())
}

func TestAdGroupIndexForPosition(t *testing.T) {
	s, err := NewAdPlaybackState(0, 5_000_000, TimeEndOfSource)
	require.NoError(t, err)
	s = s.WithAdCount(0, 1).WithAdCount(1, 1).WithAdCount(2, 1)
	duration := int64(10_000_000)

	assert.Equal(t, 0, s.AdGroupIndexForPosition(0, duration))
	assert.Equal(t, 0, s.AdGroupIndexForPosition(4_999_999, duration))
	assert.Equal(t, 1, s.AdGroupIndexForPosition(5_000_000, duration))
	assert.Equal(t, 1, s.AdGroupIndexForPosition(9_999_999, duration))
	assert.Equal(t, 2, s.AdGroupIndexForPosition(10_000_000, duration), "post-roll at the period end")
	assert.Equal(t, 1, s.AdGroupIndexForPosition(9_000_000, TimeUnset), "post-roll unreachable without a duration")

	played := s.WithPlayedAd(1, 0)
	assert.Equal(t, IndexUnset, played.AdGroupIndexForPosition(6_000_000, duration), "played group is not returned")
}

func TestAdGroupIndexAfterPosition(t *testing.T) {
	s, err := NewAdPlaybackState(0, 5_000_000, TimeEndOfSource)
	require.NoError(t, err)
	s = s.WithAdCount(0, 1).WithAdCount(1, 1).WithAdCount(2, 1)
	duration := int64(10_000_000)

	assert.Equal(t, 1, s.AdGroupIndexAfterPosition(0, duration))
	assert.Equal(t, 2, s.AdGroupIndexAfterPosition(5_000_000, duration))
	assert.Equal(t, IndexUnset, s.AdGroupIndexAfterPosition(duration, duration))
	assert.Equal(t, IndexUnset, s.AdGroupIndexAfterPosition(TimeEndOfSource, duration))

	skipped := s.WithSkippedAdGroup(1)
	assert.Equal(t, 2, skipped.AdGroupIndexAfterPosition(0, duration), "skipped group is passed over")
}

func TestWithSkippedAdGroup_UnknownCount(t *testing.T) {
	s, err := NewAdPlaybackState(1_000)
	require.NoError(t, err)

	skipped := s.WithSkippedAdGroup(0)

	assert.Equal(t, 0, skipped.Groups[0].Count)
	assert.False(t, skipped.Groups[0].HasUnplayedAds())
}

func TestWithAdDurations(t *testing.T) {
	s, err := NewAdPlaybackState(1_000)
	require.NoError(t, err)

	s = s.WithAdCount(0, 3).WithAdDurations(0, 10, 20)

	assert.Equal(t, []int64{10, 20, TimeUnset}, s.Groups[0].Durations)
}

func TestParseAdState(t *testing.T) {
	for _, st := range []AdState{AdStateUnavailable, AdStateAvailable, AdStatePlayed, AdStateSkipped, AdStateError} {
		parsed, err := ParseAdState(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}

	_, err := ParseAdState("bogus")
	assert.ErrorIs(t, err, ErrInvalidAdPlaybackState)
}
