// Package channel implements channel and playlist management on top of the repositories.
package channel

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
)

var repeatModes = []string{models.RepeatModeOff, models.RepeatModeOne, models.RepeatModeAll}

// ChannelService handles business logic for channel operations
type ChannelService struct {
	repos    *db.Repositories
	notifier ChangeNotifier
}

// NewChannelService creates a new channel service instance. A nil notifier is allowed.
func NewChannelService(repos *db.Repositories, notifier ChangeNotifier) *ChannelService {
	return &ChannelService{
		repos:    repos,
		notifier: orNoop(notifier),
	}
}

// CreateChannel creates a new channel with validation. An empty repeat mode means off.
func (s *ChannelService) CreateChannel(ctx context.Context, name, repeatMode string, shuffle bool, shuffleSeed int64) (*models.Channel, error) {
	if repeatMode == "" {
		repeatMode = models.RepeatModeOff
	}
	if err := validateRepeatMode(repeatMode); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := s.validateNameUniqueness(ctx, name, uuid.Nil); err != nil {
		logger.Log.Warn().
			Str("name", name).
			Msg("Channel creation failed: duplicate name")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	channel := models.NewChannel(strings.TrimSpace(name), repeatMode, shuffle, shuffleSeed)

	if err := s.repos.Channels.Create(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("name", name).
			Msg("Failed to create channel in database")
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channel.ID.String()).
		Str("name", channel.Name).
		Str("repeat_mode", channel.RepeatMode).
		Bool("shuffle", channel.Shuffle).
		Msg("Channel created successfully")

	return channel, nil
}

// GetByID retrieves a channel by its ID
func (s *ChannelService) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	channel, err := s.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to get channel by ID")
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}

// List retrieves all channels
func (s *ChannelService) List(ctx context.Context) ([]*models.Channel, error) {
	channels, err := s.repos.Channels.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(channels)).
		Msg("Listed channels")

	return channels, nil
}

// UpdateChannel updates an existing channel with validation.
// A change to the shuffle flag or seed changes the timeline and is notified.
func (s *ChannelService) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	existing, err := s.GetByID(ctx, channel.ID)
	if err != nil {
		return err
	}

	if err := validateRepeatMode(channel.RepeatMode); err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}

	if !strings.EqualFold(existing.Name, channel.Name) {
		if err := s.validateNameUniqueness(ctx, channel.Name, channel.ID); err != nil {
			logger.Log.Warn().
				Str("channel_id", channel.ID.String()).
				Str("name", channel.Name).
				Msg("Channel update failed: duplicate name")
			return fmt.Errorf("failed to update channel: %w", err)
		}
	}

	channel.UpdatedAt = time.Now().UTC()

	if err := s.repos.Channels.Update(ctx, channel); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", channel.ID.String()).
			Msg("Failed to update channel in database")
		return fmt.Errorf("failed to update channel: %w", err)
	}

	if existing.Shuffle != channel.Shuffle || existing.ShuffleSeed != channel.ShuffleSeed {
		s.notifier.PlaylistChanged(channel.ID)
	}

	logger.Log.Info().
		Str("channel_id", channel.ID.String()).
		Str("name", channel.Name).
		Msg("Channel updated successfully")

	return nil
}

// DeleteChannel deletes a channel by its ID
func (s *ChannelService) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	// Playlist items and ad breaks cascade in the database
	if err := s.repos.Channels.Delete(ctx, id); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to delete channel from database")
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	s.notifier.PlaylistChanged(id)

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel deleted successfully")

	return nil
}

// validateNameUniqueness checks if a channel name is unique (case-insensitive)
// excludeID allows excluding a specific channel ID (for updates)
func (s *ChannelService) validateNameUniqueness(ctx context.Context, name string, excludeID uuid.UUID) error {
	channels, err := s.repos.Channels.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate name uniqueness: %w", err)
	}

	nameLower := strings.ToLower(strings.TrimSpace(name))

	for _, channel := range channels {
		if channel.ID == excludeID {
			continue
		}
		if strings.ToLower(strings.TrimSpace(channel.Name)) == nameLower {
			return ErrDuplicateChannelName
		}
	}

	return nil
}

func validateRepeatMode(mode string) error {
	if !slices.Contains(repeatModes, mode) {
		return fmt.Errorf("%w: %q", ErrInvalidRepeatMode, mode)
	}
	return nil
}
