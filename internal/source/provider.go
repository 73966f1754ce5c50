package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/config"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
	"github.com/stwalsh4118/cadence/internal/timeline"
)

const (
	notifyTimeout = 5 * time.Second

	liveMinSpeed = 0.97
	liveMaxSpeed = 1.03
)

// ManifestTracker is told which live manifests a channel's timeline depends on
type ManifestTracker interface {
	Track(channelID uuid.UUID, paths []string)
}

// Provider builds channel timelines and fans them out to subscribers
type Provider struct {
	catalog        Catalog
	liveEdgeOffset int64
	sequence       atomic.Int64

	mu      sync.Mutex
	subs    map[uuid.UUID]map[*Subscription]struct{}
	tracker ManifestTracker
}

// NewProvider creates a provider reading from catalog
func NewProvider(catalog Catalog, cfg config.SourceConfig) *Provider {
	return &Provider{
		catalog:        catalog,
		liveEdgeOffset: cfg.LiveEdgeOffset.Microseconds(),
		subs:           make(map[uuid.UUID]map[*Subscription]struct{}),
	}
}

// SetTracker registers the tracker told about live manifests on every build
func (p *Provider) SetTracker(t ManifestTracker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker = t
}

// Build turns a channel's playlist into a timeline: one window with one period per
// item. The shuffle order is derived from the channel seed.
func (p *Provider) Build(ctx context.Context, channelID uuid.UUID) (*timeline.Timeline, error) {
	channel, err := p.catalog.Channel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel: %w", err)
	}
	items, err := p.catalog.Playlist(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}

	entries := make([]timeline.Entry, 0, len(items))
	var manifests []string
	for _, item := range items {
		if item.Media == nil {
			return nil, fmt.Errorf("playlist item %s has no media", item.ID)
		}
		ads, err := adPlaybackState(item.AdBreaks)
		if err != nil {
			return nil, fmt.Errorf("playlist item %s: %w", item.ID, err)
		}

		if item.Media.IsLive() {
			manifests = append(manifests, item.Media.FilePath)
			entries = append(entries, p.liveEntry(item, ads))
			continue
		}
		entries = append(entries, fileEntry(item, ads))
	}

	p.mu.Lock()
	tracker := p.tracker
	p.mu.Unlock()
	if tracker != nil {
		tracker.Track(channelID, manifests)
	}

	order := timeline.NewRandomShuffleOrder(len(entries), channel.ShuffleSeed)
	tl, err := timeline.FromEntries(entries, timeline.WithShuffleOrder(order))
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}
	return tl, nil
}

// Subscribe registers for the timeline updates of a channel
func (p *Provider) Subscribe(channelID uuid.UUID) *Subscription {
	s := &Subscription{
		channelID: channelID,
		provider:  p,
		updates:   make(chan Update, 1),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs[channelID] == nil {
		p.subs[channelID] = make(map[*Subscription]struct{})
	}
	p.subs[channelID][s] = struct{}{}
	return s
}

// Notify rebuilds the timeline of a channel and publishes it. A deleted channel
// publishes an empty timeline.
func (p *Provider) Notify(ctx context.Context, channelID uuid.UUID, reason Reason) (Update, error) {
	tl, err := p.Build(ctx, channelID)
	if errors.Is(err, ErrChannelNotFound) {
		tl, err = timeline.Empty, nil
	}
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channelID.String()).
			Stringer("reason", reason).
			Msg("Failed to rebuild timeline")
		return Update{}, err
	}

	update := Update{
		ChannelID: channelID,
		Timeline:  tl,
		Reason:    reason,
		Sequence:  p.sequence.Add(1),
	}
	delivered := p.publish(update)

	logger.Log.Debug().
		Str("channel_id", channelID.String()).
		Stringer("reason", reason).
		Int64("sequence", update.Sequence).
		Int("windows", tl.WindowCount()).
		Int("subscribers", delivered).
		Msg("Timeline published")

	return update, nil
}

// PlaylistChanged implements channel.ChangeNotifier
func (p *Provider) PlaylistChanged(channelID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	_, _ = p.Notify(ctx, channelID, ReasonPlaylistChanged)
}

// publish delivers without blocking; a subscriber that has not consumed the
// previous update only sees the newest one.
func (p *Provider) publish(update Update) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subs[update.ChannelID]
	for s := range subs {
		select {
		case s.updates <- update:
		default:
			select {
			case <-s.updates:
			default:
			}
			s.updates <- update
		}
	}
	return len(subs)
}

func (p *Provider) unsubscribe(s *Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subs[s.channelID]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(p.subs, s.channelID)
	}
	close(s.updates)
}

func (p *Provider) liveEntry(item *models.PlaylistItem, ads timeline.AdPlaybackState) timeline.Entry {
	uid := item.ID.String()
	window := timeline.Window{
		UID:             uid,
		MediaItemID:     item.MediaID.String(),
		IsSeekable:      item.Media.IsSeekable,
		IsDynamic:       true,
		DefaultPosition: timeline.TimeUnset,
		Duration:        timeline.TimeUnset,
	}
	period := timeline.Period{UID: uid, Duration: timeline.TimeUnset, Ads: ads}

	m, err := ReadManifest(item.Media.FilePath)
	if err != nil {
		// Unresolvable until the manifest shows up
		logger.Log.Warn().
			Err(err).
			Str("path", item.Media.FilePath).
			Msg("Live manifest unavailable")
		return timeline.Entry{Window: window, Periods: []timeline.Period{period}}
	}

	removed := m.RemovedDuration()
	window.Duration = m.Duration
	window.PositionInFirstPeriod = removed
	period.PositionInWindow = -removed

	if m.Closed {
		window.IsDynamic = false
		window.DefaultPosition = 0
		period.Duration = removed + m.Duration
	} else {
		window.DefaultPosition = max(0, m.Duration-p.liveEdgeOffset)
		window.Live = &timeline.LiveConfiguration{
			TargetOffset: p.liveEdgeOffset,
			MinOffset:    min(p.liveEdgeOffset, m.TargetDuration),
			MaxOffset:    m.Duration,
			MinSpeed:     liveMinSpeed,
			MaxSpeed:     liveMaxSpeed,
		}
	}

	return timeline.Entry{Window: window, Periods: []timeline.Period{period}}
}

func fileEntry(item *models.PlaylistItem, ads timeline.AdPlaybackState) timeline.Entry {
	duration := item.Media.DurationUs
	if duration <= 0 {
		duration = timeline.TimeUnset
	}
	entry := timeline.SinglePeriodEntry(item.ID.String(), duration, ads)
	entry.Window.MediaItemID = item.MediaID.String()
	entry.Window.IsSeekable = item.Media.IsSeekable
	return entry
}

// adPlaybackState converts stored ad breaks, ordered by time with post-rolls last
func adPlaybackState(breaks []*models.AdBreak) (timeline.AdPlaybackState, error) {
	times := make([]int64, len(breaks))
	for i, b := range breaks {
		times[i] = b.TimeUs
		if b.PostRoll {
			times[i] = timeline.TimeEndOfSource
		}
	}
	ads, err := timeline.NewAdPlaybackState(times...)
	if err != nil {
		return timeline.AdPlaybackState{}, err
	}

	for group, b := range breaks {
		if b.AdCount != nil {
			ads = ads.WithAdCount(group, *b.AdCount)
			durations := make([]int64, *b.AdCount)
			for i := range durations {
				durations[i] = timeline.TimeUnset
				if b.AdDurationUs > 0 {
					durations[i] = b.AdDurationUs
				}
			}
			ads = ads.WithAdDurations(group, durations...)
		}
		for index, s := range b.States {
			state, err := timeline.ParseAdState(s)
			if err != nil {
				return timeline.AdPlaybackState{}, err
			}
			ads = ads.WithAdState(group, index, state)
		}
		ads = ads.
			WithContentResumeOffset(group, b.ContentResumeOffsetUs).
			WithServerSideInserted(group, b.ServerSideInserted)
	}

	return ads, ads.Validate()
}

// Subscription receives the timeline updates of one channel
type Subscription struct {
	channelID uuid.UUID
	provider  *Provider
	updates   chan Update
}

// ChannelID returns the subscribed channel
func (s *Subscription) ChannelID() uuid.UUID {
	return s.channelID
}

// Updates returns the update channel, closed by Close
func (s *Subscription) Updates() <-chan Update {
	return s.updates
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.provider.unsubscribe(s)
}
