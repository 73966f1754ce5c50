package source

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/models"
)

// ErrChannelNotFound is returned by a Catalog for an unknown channel
var ErrChannelNotFound = errors.New("channel not found")

// Catalog provides the stored state a timeline is built from
type Catalog interface {
	Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error)

	// Playlist returns the items in position order with media and ad breaks loaded.
	Playlist(ctx context.Context, channelID uuid.UUID) ([]*models.PlaylistItem, error)
}

// RepositoryCatalog reads channels and playlists from the database
type RepositoryCatalog struct {
	repos *db.Repositories
}

// NewRepositoryCatalog creates a catalog backed by the repositories
func NewRepositoryCatalog(repos *db.Repositories) *RepositoryCatalog {
	return &RepositoryCatalog{repos: repos}
}

// Channel implements Catalog
func (c *RepositoryCatalog) Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	channel, err := c.repos.Channels.GetByID(ctx, id)
	if db.IsNotFound(err) {
		return nil, ErrChannelNotFound
	}
	return channel, err
}

// Playlist implements Catalog
func (c *RepositoryCatalog) Playlist(ctx context.Context, channelID uuid.UUID) ([]*models.PlaylistItem, error) {
	return c.repos.PlaylistItems.GetWithMedia(ctx, channelID)
}
