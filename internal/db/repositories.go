package db

// Repositories provides access to all database repositories
type Repositories struct {
	Channels      *ChannelRepository
	Media         *MediaRepository
	PlaylistItems *PlaylistItemRepository
	AdBreaks      *AdBreakRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Channels:      NewChannelRepository(db),
		Media:         NewMediaRepository(db),
		PlaylistItems: NewPlaylistItemRepository(db),
		AdBreaks:      NewAdBreakRepository(db),
	}
}
