package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTracker struct {
	tracked map[uuid.UUID][]string
}

func (r *recordingTracker) Track(channelID uuid.UUID, paths []string) {
	if r.tracked == nil {
		r.tracked = make(map[uuid.UUID][]string)
	}
	r.tracked[channelID] = paths
}

type recordingSourceNotifier struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
}

func (n *recordingSourceNotifier) Notify(_ context.Context, channelID uuid.UUID, reason Reason) (Update, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = make(map[uuid.UUID]int)
	}
	n.calls[channelID]++
	return Update{ChannelID: channelID, Reason: reason}, nil
}

func (n *recordingSourceNotifier) count(id uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[id]
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(nil, time.Second)
	assert.Error(t, err)

	_, err = NewWatcher(&recordingSourceNotifier{}, 0)
	assert.Error(t, err)
}

func TestWatcher_Track(t *testing.T) {
	w, err := NewWatcher(&recordingSourceNotifier{}, time.Second)
	require.NoError(t, err)

	a, b := uuid.New(), uuid.New()
	w.Track(a, []string{"/streams/one.m3u8", "/streams/two.m3u8"})
	w.Track(b, []string{"/streams/one.m3u8"})
	assert.Equal(t, 2, w.Watched())

	w.Track(a, nil)
	assert.Equal(t, 1, w.Watched())

	w.Track(b, nil)
	assert.Equal(t, 0, w.Watched())
	assert.Empty(t, w.dirs)
}

func TestWatcher_NotifiesOnChange(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "live.m3u8")
			require.NoError(t, os.WriteFile(path, []byte(liveManifest), 0o644))

			notifier := &recordingSourceNotifier{}
			w, err := NewWatcher(notifier, 20*time.Millisecond)
			require.NoError(t, err)
			w.usePolling = polling

			watching, idle := uuid.New(), uuid.New()
			w.Track(watching, []string{path})
			w.Track(idle, []string{filepath.Join(dir, "other.m3u8")})

			require.NoError(t, w.Start())
			defer func() { _ = w.Stop() }()

			updated := liveManifest + "#EXTINF:6.000,\nseg13.ts\n"
			require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

			assert.Eventually(t, func() bool {
				return notifier.count(watching) > 0
			}, 3*time.Second, 20*time.Millisecond)
			assert.Zero(t, notifier.count(idle))
		})
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(&recordingSourceNotifier{}, time.Second)
	require.NoError(t, err)

	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Error(t, w.Start())
}
