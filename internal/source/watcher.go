package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cadence/internal/logger"
)

const debounceWindow = 250 * time.Millisecond

// SourceNotifier republishes a channel's timeline
type SourceNotifier interface {
	Notify(ctx context.Context, channelID uuid.UUID, reason Reason) (Update, error)
}

type watchedFile struct {
	channels map[uuid.UUID]struct{}
	modTime  time.Time
	size     int64
}

// Watcher watches live manifests and republishes the timelines of the channels
// that play them. It uses fsnotify and falls back to polling when fsnotify is
// unavailable.
type Watcher struct {
	notifier     SourceNotifier
	pollInterval time.Duration
	usePolling   bool
	log          zerolog.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	files    map[string]*watchedFile
	dirs     map[string]int
	pending  map[string]time.Time
	started  bool
	stopped  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	channels map[uuid.UUID][]string
}

// NewWatcher creates a watcher that notifies through notifier
func NewWatcher(notifier SourceNotifier, pollInterval time.Duration) (*Watcher, error) {
	if notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if pollInterval <= 0 {
		return nil, errors.New("poll interval must be greater than 0")
	}
	return &Watcher{
		notifier:     notifier,
		pollInterval: pollInterval,
		log:          logger.Component("source_watcher"),
		files:        make(map[string]*watchedFile),
		dirs:         make(map[string]int),
		pending:      make(map[string]time.Time),
		channels:     make(map[uuid.UUID][]string),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return errors.New("watcher has been stopped")
	}
	if w.started {
		return nil
	}
	w.started = true

	if !w.usePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn().
				Err(err).
				Msg("Failed to create fsnotify watcher, falling back to polling")
		} else {
			w.fsw = fsw
			for dir := range w.dirs {
				w.addDirLocked(dir)
			}
		}
	}

	go w.run()

	w.log.Info().
		Bool("using_fsnotify", w.fsw != nil).
		Dur("poll_interval", w.pollInterval).
		Msg("Manifest watcher started")

	return nil
}

// Stop stops watching and waits for the watch loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stopCh)
	if !started {
		return nil
	}
	<-w.doneCh

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			w.log.Warn().Err(err).Msg("Error closing fsnotify watcher")
		}
	}
	return nil
}

// Track implements ManifestTracker: paths replaces the manifests watched for channelID
func (w *Watcher) Track(channelID uuid.UUID, paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range w.channels[channelID] {
		f := w.files[path]
		if f == nil {
			continue
		}
		delete(f.channels, channelID)
		if len(f.channels) == 0 {
			delete(w.files, path)
			w.releaseDirLocked(filepath.Dir(path))
		}
	}
	delete(w.channels, channelID)

	var tracked []string
	for _, path := range paths {
		path = filepath.Clean(path)
		f := w.files[path]
		if f == nil {
			f = &watchedFile{channels: make(map[uuid.UUID]struct{})}
			if info, err := os.Stat(path); err == nil {
				f.modTime, f.size = info.ModTime(), info.Size()
			}
			w.files[path] = f
			w.retainDirLocked(filepath.Dir(path))
		}
		if _, ok := f.channels[channelID]; !ok {
			f.channels[channelID] = struct{}{}
			tracked = append(tracked, path)
		}
	}
	if len(tracked) > 0 {
		w.channels[channelID] = tracked
	}
}

// Watched returns the number of manifests being watched
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

func (w *Watcher) retainDirLocked(dir string) {
	w.dirs[dir]++
	if w.dirs[dir] == 1 && w.fsw != nil {
		w.addDirLocked(dir)
	}
}

func (w *Watcher) releaseDirLocked(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return
	}
	delete(w.dirs, dir)
	if w.fsw != nil {
		_ = w.fsw.Remove(dir)
	}
}

// addDirLocked watches the directory so atomic rename writes are seen
func (w *Watcher) addDirLocked(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.log.Warn().
			Err(err).
			Str("dir", dir).
			Msg("Failed to watch manifest directory, relying on polling")
	}
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	debounce := time.NewTicker(debounceWindow)
	defer debounce.Stop()
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()

	var events chan fsnotify.Event
	var errs chan error
	w.mu.Lock()
	if w.fsw != nil {
		events, errs = w.fsw.Events, w.fsw.Errors
	}
	w.mu.Unlock()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				w.markPending(filepath.Clean(event.Name))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warn().Err(err).Msg("fsnotify error, continuing")
		case <-poll.C:
			// Polling also covers missed events on filesystems without inotify support
			w.pollFiles()
		case <-debounce.C:
			w.flush()
		}
	}
}

func (w *Watcher) markPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[path]; !ok {
		return
	}
	if _, ok := w.pending[path]; !ok {
		w.pending[path] = time.Now()
	}
}

func (w *Watcher) pollFiles() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, f := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Equal(f.modTime) && info.Size() == f.size {
			continue
		}
		if _, ok := w.pending[path]; !ok {
			w.pending[path] = time.Now()
		}
	}
}

// flush notifies each affected channel once for the manifests changed since the last flush
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	affected := make(map[uuid.UUID]struct{})
	for path := range w.pending {
		f := w.files[path]
		if f == nil {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			f.modTime, f.size = info.ModTime(), info.Size()
		}
		for id := range f.channels {
			affected[id] = struct{}{}
		}
	}
	clear(w.pending)
	w.mu.Unlock()

	for id := range affected {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if _, err := w.notifier.Notify(ctx, id, ReasonSourceUpdate); err != nil {
			w.log.Warn().
				Err(err).
				Str("channel_id", id.String()).
				Msg("Failed to republish timeline after manifest change")
		}
		cancel()
	}
}
