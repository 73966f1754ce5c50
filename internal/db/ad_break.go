package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/models"
	"gorm.io/gorm"
)

// AdBreakRepository handles database operations for ad breaks
type AdBreakRepository struct {
	db *DB
}

// NewAdBreakRepository creates a new ad break repository
func NewAdBreakRepository(db *DB) *AdBreakRepository {
	return &AdBreakRepository{db: db}
}

// Create inserts a new ad break
func (r *AdBreakRepository) Create(ctx context.Context, adBreak *models.AdBreak) error {
	result := r.db.WithContext(ctx).Create(adBreak)
	if result.Error != nil {
		return fmt.Errorf("failed to create ad break: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves an ad break by its UUID
func (r *AdBreakRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdBreak, error) {
	var adBreak models.AdBreak
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&adBreak)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &adBreak, nil
}

// ListByPlaylistItem returns the ad breaks of a playlist item ordered by time, post-rolls last
func (r *AdBreakRepository) ListByPlaylistItem(ctx context.Context, playlistItemID uuid.UUID) ([]*models.AdBreak, error) {
	var breaks []*models.AdBreak
	result := r.db.WithContext(ctx).
		Where("playlist_item_id = ?", playlistItemID.String()).
		Order("post_roll ASC, time_us ASC").
		Find(&breaks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list ad breaks: %w", MapGormError(result.Error))
	}
	return breaks, nil
}

// Update writes all mutable ad break fields, including zero values
func (r *AdBreakRepository) Update(ctx context.Context, adBreak *models.AdBreak) error {
	now := time.Now().UTC()
	adBreak.UpdatedAt = &now

	result := r.db.WithContext(ctx).
		Where("id = ?", adBreak.ID.String()).
		Select("time_us", "post_roll", "ad_count", "ad_duration_us", "server_side_inserted",
			"content_resume_offset_us", "states", "updated_at").
		Updates(adBreak)
	if result.Error != nil {
		return fmt.Errorf("failed to update ad break: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAdState sets the state of one ad. States of ads before index that were never
// recorded are filled with available.
func (r *AdBreakRepository) SetAdState(ctx context.Context, id uuid.UUID, index int, state string) (*models.AdBreak, error) {
	var updated models.AdBreak
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.String()).First(&updated).Error; err != nil {
			return MapGormError(err)
		}
		if index < 0 || (updated.AdCount != nil && index >= *updated.AdCount) {
			return fmt.Errorf("%w: ad index %d out of range", ErrInvalidInput, index)
		}

		for len(updated.States) <= index {
			updated.States = append(updated.States, models.AdStateAvailable)
		}
		updated.States[index] = state
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		now := time.Now().UTC()
		updated.UpdatedAt = &now
		result := tx.Model(&models.AdBreak{}).
			Where("id = ?", id.String()).
			Updates(map[string]any{"states": updated.States, "updated_at": now})
		return MapGormError(result.Error)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ChannelIDFor returns the channel owning the playlist item an ad break belongs to
func (r *AdBreakRepository) ChannelIDFor(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var channelID string
	result := r.db.WithContext(ctx).
		Table("ad_breaks").
		Select("playlist_items.channel_id").
		Joins("JOIN playlist_items ON playlist_items.id = ad_breaks.playlist_item_id").
		Where("ad_breaks.id = ?", id.String()).
		Scan(&channelID)
	if result.Error != nil {
		return uuid.Nil, fmt.Errorf("failed to find ad break channel: %w", MapGormError(result.Error))
	}
	if channelID == "" {
		return uuid.Nil, ErrNotFound
	}
	return uuid.Parse(channelID)
}

// Delete deletes an ad break by its UUID
func (r *AdBreakRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.AdBreak{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete ad break: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
