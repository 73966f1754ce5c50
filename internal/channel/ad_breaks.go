package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
)

// AddAdBreak schedules an ad break in a playlist item
func (s *PlaylistService) AddAdBreak(ctx context.Context, itemID uuid.UUID, adBreak *models.AdBreak) (*models.AdBreak, error) {
	item, err := s.repos.PlaylistItems.GetByID(ctx, itemID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to add ad break: %w", ErrPlaylistItemNotFound)
		}
		return nil, fmt.Errorf("failed to add ad break: %w", err)
	}

	if adBreak.ID == uuid.Nil {
		adBreak.ID = uuid.New()
	}
	adBreak.PlaylistItemID = itemID
	if err := adBreak.Validate(); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("playlist_item_id", itemID.String()).
			Msg("Add ad break failed: validation")
		return nil, fmt.Errorf("failed to add ad break: %w: %v", ErrInvalidAdBreak, err)
	}

	if err := s.repos.AdBreaks.Create(ctx, adBreak); err != nil {
		logger.Log.Error().
			Err(err).
			Str("playlist_item_id", itemID.String()).
			Msg("Failed to create ad break")
		return nil, fmt.Errorf("failed to add ad break: %w", err)
	}

	logger.Log.Info().
		Str("ad_break_id", adBreak.ID.String()).
		Str("playlist_item_id", itemID.String()).
		Int64("time_us", adBreak.TimeUs).
		Bool("post_roll", adBreak.PostRoll).
		Msg("Ad break added")

	s.notifier.PlaylistChanged(item.ChannelID)
	return adBreak, nil
}

// RemoveAdBreak deletes an ad break
func (s *PlaylistService) RemoveAdBreak(ctx context.Context, breakID uuid.UUID) error {
	channelID, err := s.adBreakChannel(ctx, breakID)
	if err != nil {
		return fmt.Errorf("failed to remove ad break: %w", err)
	}

	if err := s.repos.AdBreaks.Delete(ctx, breakID); err != nil {
		return fmt.Errorf("failed to remove ad break: %w", err)
	}

	s.notifier.PlaylistChanged(channelID)
	return nil
}

// SetAdState records the playback state of one ad in an ad break
func (s *PlaylistService) SetAdState(ctx context.Context, breakID uuid.UUID, index int, state string) (*models.AdBreak, error) {
	channelID, err := s.adBreakChannel(ctx, breakID)
	if err != nil {
		return nil, fmt.Errorf("failed to set ad state: %w", err)
	}

	updated, err := s.repos.AdBreaks.SetAdState(ctx, breakID, index, state)
	if err != nil {
		if errors.Is(err, db.ErrInvalidInput) {
			return nil, fmt.Errorf("failed to set ad state: %w: %v", ErrInvalidAdBreak, err)
		}
		return nil, fmt.Errorf("failed to set ad state: %w", err)
	}

	logger.Log.Debug().
		Str("ad_break_id", breakID.String()).
		Int("ad_index", index).
		Str("state", state).
		Msg("Ad state updated")

	s.notifier.PlaylistChanged(channelID)
	return updated, nil
}

func (s *PlaylistService) adBreakChannel(ctx context.Context, breakID uuid.UUID) (uuid.UUID, error) {
	channelID, err := s.repos.AdBreaks.ChannelIDFor(ctx, breakID)
	if err != nil {
		if db.IsNotFound(err) {
			return uuid.Nil, ErrAdBreakNotFound
		}
		return uuid.Nil, err
	}
	return channelID, nil
}
