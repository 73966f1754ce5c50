package playback

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/config"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
	"github.com/stwalsh4118/cadence/internal/source"
	"github.com/stwalsh4118/cadence/internal/timeline"
)

// TimelineSource builds channel timelines and streams their updates
type TimelineSource interface {
	Build(ctx context.Context, channelID uuid.UUID) (*timeline.Timeline, error)
	Subscribe(channelID uuid.UUID) *source.Subscription
}

// ChannelLookup loads the channel a session plays
type ChannelLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
}

// Manager owns the running playback sessions
type Manager struct {
	source   TimelineSource
	channels ChannelLookup
	cfg      config.QueueConfig

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	created  uint64
}

// NewManager creates a new session manager
func NewManager(src TimelineSource, channels ChannelLookup, cfg config.QueueConfig) *Manager {
	return &Manager{
		source:   src,
		channels: channels,
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a session for a channel using the channel's repeat and shuffle modes
func (m *Manager) Create(ctx context.Context, channelID uuid.UUID) (*Session, error) {
	channel, err := m.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	mode, err := timeline.ParseRepeatMode(channel.RepeatMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse repeat mode: %w", err)
	}

	// Subscribe before building so no update between the two is lost
	sub := m.source.Subscribe(channelID)
	tl, err := m.source.Build(ctx, channelID)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}

	s := newSession(channelID, tl, sub, mode, channel.Shuffle, m.cfg)
	s.start()

	m.mu.Lock()
	m.created++
	s.order = m.created
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	logger.Log.Info().
		Str("session_id", s.ID().String()).
		Str("channel_id", channelID.String()).
		Int("windows", tl.WindowCount()).
		Msg("Playback session started")

	return s, nil
}

// Get returns a running session
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the running sessions ordered by creation time
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].order < sessions[j].order
	})
	return sessions
}

// Stop stops and removes a session
func (m *Manager) Stop(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Stop()
	return nil
}

// StopAll stops every session
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	if len(sessions) > 0 {
		logger.Log.Info().Int("count", len(sessions)).Msg("Stopped all playback sessions")
	}
}
