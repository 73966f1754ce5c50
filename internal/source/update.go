// Package source turns stored channel playlists into timeline snapshots and
// publishes a new snapshot whenever the playlist or a live source changes.
package source

import (
	"github.com/google/uuid"
	"github.com/stwalsh4118/cadence/internal/timeline"
)

// Reason tells subscribers why a new timeline was published
type Reason int

const (
	// ReasonPlaylistChanged means items, ad breaks or the shuffle seed changed
	ReasonPlaylistChanged Reason = iota
	// ReasonSourceUpdate means a live source refreshed its manifest
	ReasonSourceUpdate
)

// String returns the string representation of Reason
func (r Reason) String() string {
	switch r {
	case ReasonPlaylistChanged:
		return "playlist_changed"
	case ReasonSourceUpdate:
		return "source_update"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Update is a timeline snapshot published for a channel. Sequence increases with
// every update a provider publishes.
type Update struct {
	ChannelID uuid.UUID          `json:"channel_id"`
	Timeline  *timeline.Timeline `json:"-"`
	Reason    Reason             `json:"reason"`
	Sequence  int64              `json:"sequence"`
}
