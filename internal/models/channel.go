package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a playlist of media items played as one sequence
type Channel struct {
	ID          uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name        string    `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	RepeatMode  string    `json:"repeat_mode" gorm:"type:text;not null;default:off;column:repeat_mode" validate:"oneof=off one all"`
	Shuffle     bool      `json:"shuffle" gorm:"type:integer;not null;default:0;column:shuffle"`
	ShuffleSeed int64     `json:"shuffle_seed" gorm:"type:integer;not null;default:0;column:shuffle_seed"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewChannel creates a new Channel with generated UUID and timestamps
func NewChannel(name string, repeatMode string, shuffle bool, shuffleSeed int64) *Channel {
	if repeatMode == "" {
		repeatMode = RepeatModeOff
	}
	now := time.Now().UTC()
	return &Channel{
		ID:          uuid.New(),
		Name:        name,
		RepeatMode:  repeatMode,
		Shuffle:     shuffle,
		ShuffleSeed: shuffleSeed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
