package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/models"
	"gorm.io/gorm"
)

// PlaylistService edits channel playlists. Every successful edit is reported to the
// notifier so running sessions rebuild their timelines.
type PlaylistService struct {
	repos    *db.Repositories
	db       *db.DB
	notifier ChangeNotifier
}

// NewPlaylistService creates a new playlist service instance. A nil notifier is allowed.
func NewPlaylistService(database *db.DB, repos *db.Repositories, notifier ChangeNotifier) *PlaylistService {
	return &PlaylistService{
		repos:    repos,
		db:       database,
		notifier: orNoop(notifier),
	}
}

// AddToPlaylist inserts a media item at position, moving the items at or after it
// one slot down.
func (s *PlaylistService) AddToPlaylist(ctx context.Context, channelID, mediaID uuid.UUID, position int) (*models.PlaylistItem, error) {
	log := logger.Log.With().
		Str("channel_id", channelID.String()).
		Str("media_id", mediaID.String()).
		Int("position", position).
		Logger()
	const op = "add media to playlist"

	if position < 0 {
		return nil, fail(log, op, ErrInvalidPosition)
	}
	if err := s.requireChannel(ctx, channelID); err != nil {
		return nil, fail(log, op, err)
	}
	if err := s.requireMedia(ctx, mediaID); err != nil {
		return nil, fail(log, op, err)
	}

	item := models.NewPlaylistItem(channelID, mediaID, position)
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := shiftPositions(tx, channelID, "position >= ?", position, "position + 1"); err != nil {
			return err
		}
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, fail(log, op, err)
	}

	s.changed(log.With().Str("playlist_item_id", item.ID.String()).Logger(), channelID, "Media added to playlist")
	return item, nil
}

// AppendToPlaylist adds a media item after the last item of a channel's playlist
func (s *PlaylistService) AppendToPlaylist(ctx context.Context, channelID, mediaID uuid.UUID) (*models.PlaylistItem, error) {
	position, err := s.repos.PlaylistItems.NextPosition(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to append to playlist: %w", err)
	}
	return s.AddToPlaylist(ctx, channelID, mediaID, position)
}

// BulkAddItem is one media item of a bulk add
type BulkAddItem struct {
	MediaID  uuid.UUID
	Position int
}

// BulkAddToPlaylist inserts items at their positions in one transaction. Existing
// items are not moved.
func (s *PlaylistService) BulkAddToPlaylist(ctx context.Context, channelID uuid.UUID, items []BulkAddItem) ([]*models.PlaylistItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	log := logger.Log.With().
		Str("channel_id", channelID.String()).
		Int("item_count", len(items)).
		Logger()
	const op = "bulk add to playlist"

	mediaIDs := make([]uuid.UUID, len(items))
	for i, item := range items {
		if item.Position < 0 {
			return nil, fail(log, op, fmt.Errorf("item %d: %w", i, ErrInvalidPosition))
		}
		mediaIDs[i] = item.MediaID
	}
	if err := s.requireChannel(ctx, channelID); err != nil {
		return nil, fail(log, op, err)
	}

	found, err := s.repos.Media.ExistsByIDs(ctx, mediaIDs)
	if err != nil {
		return nil, fail(log, op, err)
	}
	for _, id := range mediaIDs {
		if !found[id] {
			return nil, fail(log, op, fmt.Errorf("media %s: %w", id, ErrMediaNotFound))
		}
	}

	created := make([]*models.PlaylistItem, len(items))
	for i, item := range items {
		created[i] = models.NewPlaylistItem(channelID, item.MediaID, item.Position)
	}
	if err := s.repos.PlaylistItems.CreateBatch(ctx, created); err != nil {
		return nil, fail(log, op, err)
	}

	s.changed(log, channelID, "Media items bulk added to playlist")
	return created, nil
}

// RemoveFromPlaylist deletes a playlist item and closes the gap it leaves
func (s *PlaylistService) RemoveFromPlaylist(ctx context.Context, itemID uuid.UUID) error {
	log := logger.Log.With().Str("item_id", itemID.String()).Logger()
	const op = "remove from playlist"

	item, err := s.repos.PlaylistItems.GetByID(ctx, itemID)
	if err != nil {
		return fail(log, op, notFoundAs(err, ErrPlaylistItemNotFound))
	}
	log = log.With().Str("channel_id", item.ChannelID.String()).Int("position", item.Position).Logger()

	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Where("id = ?", itemID.String()).Delete(&models.PlaylistItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPlaylistItemNotFound
		}
		return shiftPositions(tx, item.ChannelID, "position > ?", item.Position, "position - 1")
	})
	if err != nil {
		return fail(log, op, err)
	}

	s.changed(log, item.ChannelID, "Item removed from playlist")
	return nil
}

// BulkRemoveFromPlaylist deletes items of one channel and renumbers the rest from 0
func (s *PlaylistService) BulkRemoveFromPlaylist(ctx context.Context, channelID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	log := logger.Log.With().
		Str("channel_id", channelID.String()).
		Int("item_count", len(itemIDs)).
		Logger()
	const op = "bulk remove from playlist"

	if err := s.requireOwned(ctx, channelID, itemIDs); err != nil {
		return fail(log, op, err)
	}

	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", itemIDs).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		return renumber(tx, channelID)
	})
	if err != nil {
		return fail(log, op, err)
	}

	s.changed(log, channelID, "Items bulk removed from playlist")
	return nil
}

// ReorderPlaylist moves items of one channel to new positions atomically
func (s *PlaylistService) ReorderPlaylist(ctx context.Context, channelID uuid.UUID, items []db.ReorderItem) error {
	log := logger.Log.With().
		Str("channel_id", channelID.String()).
		Int("item_count", len(items)).
		Logger()
	const op = "reorder playlist"

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := s.requireOwned(ctx, channelID, ids); err != nil {
		return fail(log, op, err)
	}

	if err := s.repos.PlaylistItems.Reorder(ctx, channelID, items); err != nil {
		return fail(log, op, err)
	}

	s.changed(log, channelID, "Playlist reordered")
	return nil
}

// GetPlaylist returns a channel's items in play order with their media and ad breaks
func (s *PlaylistService) GetPlaylist(ctx context.Context, channelID uuid.UUID) ([]*models.PlaylistItem, error) {
	log := logger.Log.With().Str("channel_id", channelID.String()).Logger()
	const op = "get playlist"

	if err := s.requireChannel(ctx, channelID); err != nil {
		return nil, fail(log, op, err)
	}
	items, err := s.repos.PlaylistItems.GetWithMedia(ctx, channelID)
	if err != nil {
		return nil, fail(log, op, err)
	}

	log.Debug().Int("item_count", len(items)).Msg("Retrieved playlist items")
	return items, nil
}

// CalculateDuration sums the media durations of the items in microseconds.
// Live items contribute nothing and make the total a lower bound, which is reported.
func (s *PlaylistService) CalculateDuration(items []*models.PlaylistItem) (totalUs int64, complete bool) {
	complete = true
	for _, item := range items {
		if item.Media == nil || item.Media.IsLive() {
			complete = false
			continue
		}
		totalUs += item.Media.DurationUs
	}
	return totalUs, complete
}

// DeleteMedia deletes a media item. Playlist items using it cascade in the database,
// so every channel that referenced it is notified.
func (s *PlaylistService) DeleteMedia(ctx context.Context, mediaID uuid.UUID) error {
	channelIDs, err := s.repos.PlaylistItems.ChannelIDsForMedia(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}

	if err := s.repos.Media.Delete(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete media: %w", notFoundAs(err, ErrMediaNotFound))
	}

	for _, channelID := range channelIDs {
		s.notifier.PlaylistChanged(channelID)
	}

	logger.Log.Info().
		Str("media_id", mediaID.String()).
		Int("channels", len(channelIDs)).
		Msg("Media deleted")

	return nil
}

// UpdateMedia saves media metadata and notifies every channel playing it, since a
// duration or seekability change alters their timelines.
func (s *PlaylistService) UpdateMedia(ctx context.Context, media *models.Media) error {
	if err := s.repos.Media.Update(ctx, media); err != nil {
		return fmt.Errorf("failed to update media: %w", notFoundAs(err, ErrMediaNotFound))
	}

	channelIDs, err := s.repos.PlaylistItems.ChannelIDsForMedia(ctx, media.ID)
	if err != nil {
		return fmt.Errorf("failed to update media: %w", err)
	}
	for _, channelID := range channelIDs {
		s.notifier.PlaylistChanged(channelID)
	}
	return nil
}

func (s *PlaylistService) requireChannel(ctx context.Context, channelID uuid.UUID) error {
	_, err := s.repos.Channels.GetByID(ctx, channelID)
	return notFoundAs(err, ErrChannelNotFound)
}

func (s *PlaylistService) requireMedia(ctx context.Context, mediaID uuid.UUID) error {
	_, err := s.repos.Media.GetByID(ctx, mediaID)
	return notFoundAs(err, ErrMediaNotFound)
}

// requireOwned checks that every item exists and belongs to channelID
func (s *PlaylistService) requireOwned(ctx context.Context, channelID uuid.UUID, itemIDs []uuid.UUID) error {
	for _, id := range itemIDs {
		item, err := s.repos.PlaylistItems.GetByID(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrPlaylistItemNotFound)
		}
		if item.ChannelID != channelID {
			return fmt.Errorf("item %s belongs to channel %s: %w", id, item.ChannelID, ErrPlaylistItemNotFound)
		}
	}
	return nil
}

// changed logs a successful edit and tells the notifier about it
func (s *PlaylistService) changed(log zerolog.Logger, channelID uuid.UUID, msg string) {
	log.Info().Msg(msg)
	s.notifier.PlaylistChanged(channelID)
}

// notFoundAs replaces a repository not-found error with the service error domain
func notFoundAs(err, domain error) error {
	if db.IsNotFound(err) {
		return domain
	}
	return err
}

// fail logs a failed edit and wraps err with the operation. Caller mistakes are
// warnings, storage failures are errors.
func fail(log zerolog.Logger, op string, err error) error {
	ev := log.Error()
	if IsValidationError(err) || isMissing(err) {
		ev = log.Warn()
	}
	ev.Err(err).Msgf("Failed to %s", op)
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isMissing(err error) bool {
	return errors.Is(err, ErrChannelNotFound) ||
		errors.Is(err, ErrMediaNotFound) ||
		errors.Is(err, ErrPlaylistItemNotFound)
}

// shiftPositions moves the channel's items matching cond by the position expression
func shiftPositions(tx *gorm.DB, channelID uuid.UUID, cond string, position int, expr string) error {
	err := tx.Model(&models.PlaylistItem{}).
		Where("channel_id = ? AND "+cond, channelID.String(), position).
		Update("position", gorm.Expr(expr)).Error
	if err != nil {
		return fmt.Errorf("failed to shift playlist positions: %w", err)
	}
	return nil
}

// renumber assigns positions 0..n-1 to the channel's items in their current order
func renumber(tx *gorm.DB, channelID uuid.UUID) error {
	err := tx.Exec(`
		UPDATE playlist_items
		SET position = numbered.new_pos
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position) - 1 AS new_pos
			FROM playlist_items
			WHERE channel_id = ?
		) AS numbered
		WHERE playlist_items.id = numbered.id
	`, channelID.String()).Error
	if err != nil {
		return fmt.Errorf("failed to renumber positions: %w", err)
	}
	return nil
}
