package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/models"
)

// MediaRepository handles database operations for media
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a new media item into the database
func (r *MediaRepository) Create(ctx context.Context, media *models.Media) error {
	result := r.db.WithContext(ctx).Create(media)
	if result.Error != nil {
		return fmt.Errorf("failed to create media: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a media item by its UUID
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media models.Media
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&media)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &media, nil
}

// GetByPath retrieves a media item by its file path (for duplicate checking)
func (r *MediaRepository) GetByPath(ctx context.Context, path string) (*models.Media, error) {
	var media models.Media
	result := r.db.WithContext(ctx).Where("file_path = ?", path).First(&media)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &media, nil
}

// List retrieves all media items with pagination
func (r *MediaRepository) List(ctx context.Context, limit, offset int) ([]*models.Media, error) {
	var mediaList []*models.Media
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&mediaList)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list media: %w", MapGormError(result.Error))
	}
	return mediaList, nil
}

// Count returns the total number of media items
func (r *MediaRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Media{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count media: %w", MapGormError(result.Error))
	}
	return count, nil
}

// Update updates an existing media item
// Note: Uses map-based updates to support setting fields to zero values
func (r *MediaRepository) Update(ctx context.Context, media *models.Media) error {
	updates := map[string]any{
		"file_path":   media.FilePath,
		"title":       media.Title,
		"duration_us": media.DurationUs,
		"is_seekable": media.IsSeekable,
	}

	result := r.db.WithContext(ctx).Model(&models.Media{}).Where("id = ?", media.ID.String()).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a media item by its UUID
func (r *MediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Media{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByIDs checks which media IDs exist in the database
// Returns a map where the key is the media ID and the value is true if it exists
func (r *MediaRepository) ExistsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(ids) == 0 {
		return make(map[uuid.UUID]bool), nil
	}

	// Convert UUIDs to strings for the query
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	// Query for existing IDs
	var existingMedia []models.Media
	result := r.db.WithContext(ctx).Select("id").Where("id IN ?", idStrings).Find(&existingMedia)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to check media existence: %w", MapGormError(result.Error))
	}

	// Build existence map
	existsMap := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		existsMap[id] = false
	}
	for i := range existingMedia {
		existsMap[existingMedia[i].ID] = true
	}

	return existsMap, nil
}
