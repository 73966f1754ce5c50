package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Media represents a playable media source. Files ending in .m3u8 are live HLS
// media playlists whose duration is read from the manifest.
type Media struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	FilePath   string    `json:"file_path" gorm:"type:text;not null;uniqueIndex;column:file_path" validate:"required"`
	Title      string    `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	DurationUs int64     `json:"duration_us" gorm:"type:integer;not null;default:0;column:duration_us" validate:"gte=0"`
	IsSeekable bool      `json:"is_seekable" gorm:"type:integer;not null;column:is_seekable"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewMedia creates a new Media with generated UUID and timestamp
func NewMedia(filePath, title string, durationUs int64) *Media {
	return &Media{
		ID:         uuid.New(),
		FilePath:   filePath,
		Title:      title,
		DurationUs: durationUs,
		IsSeekable: true,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsLive reports whether the media is a live HLS media playlist
func (m *Media) IsLive() bool {
	return strings.EqualFold(filepath.Ext(m.FilePath), ".m3u8")
}

// DurationString returns duration in HH:MM:SS format
func (m *Media) DurationString() string {
	total := m.DurationUs / 1_000_000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
