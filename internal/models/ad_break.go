package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdStates stores the per-ad playback states of an ad break as a JSON array
type AdStates []string

// Value implements driver.Valuer
func (s AdStates) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *AdStates) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported ad states type %T", value)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(s))
}

// ErrInvalidAdBreak is returned by AdBreak.Validate
var ErrInvalidAdBreak = errors.New("invalid ad break")

// AdBreak is a group of ads scheduled in a playlist item. A nil AdCount means the
// number of ads is not known yet.
type AdBreak struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	PlaylistItemID        uuid.UUID  `json:"playlist_item_id" gorm:"type:text;not null;column:playlist_item_id"`
	TimeUs                int64      `json:"time_us" gorm:"type:integer;not null;default:0;column:time_us"`
	PostRoll              bool       `json:"post_roll" gorm:"type:integer;not null;default:0;column:post_roll"`
	AdCount               *int       `json:"ad_count,omitempty" gorm:"type:integer;column:ad_count"`
	AdDurationUs          int64      `json:"ad_duration_us" gorm:"type:integer;not null;default:0;column:ad_duration_us"`
	ServerSideInserted    bool       `json:"server_side_inserted" gorm:"type:integer;not null;default:0;column:server_side_inserted"`
	ContentResumeOffsetUs int64      `json:"content_resume_offset_us" gorm:"type:integer;not null;default:0;column:content_resume_offset_us"`
	States                AdStates   `json:"states" gorm:"type:text;not null;default:'[]';column:states"`
	CreatedAt             time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty" gorm:"type:datetime;column:updated_at"`
}

// NewAdBreak creates a mid-roll ad break at timeUs
func NewAdBreak(playlistItemID uuid.UUID, timeUs int64) *AdBreak {
	return &AdBreak{
		ID:             uuid.New(),
		PlaylistItemID: playlistItemID,
		TimeUs:         timeUs,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks the ad break fields
func (b *AdBreak) Validate() error {
	if !b.PostRoll && b.TimeUs < 0 {
		return fmt.Errorf("%w: negative time %d", ErrInvalidAdBreak, b.TimeUs)
	}
	if b.AdCount != nil && *b.AdCount < 0 {
		return fmt.Errorf("%w: negative ad count %d", ErrInvalidAdBreak, *b.AdCount)
	}
	if b.AdDurationUs < 0 {
		return fmt.Errorf("%w: negative ad duration %d", ErrInvalidAdBreak, b.AdDurationUs)
	}
	if b.ContentResumeOffsetUs < 0 {
		return fmt.Errorf("%w: negative content resume offset %d", ErrInvalidAdBreak, b.ContentResumeOffsetUs)
	}
	if b.AdCount != nil && len(b.States) > *b.AdCount {
		return fmt.Errorf("%w: %d states for %d ads", ErrInvalidAdBreak, len(b.States), *b.AdCount)
	}
	for i, s := range b.States {
		if !isAdState(s) {
			return fmt.Errorf("%w: ad %d has state %q", ErrInvalidAdBreak, i, s)
		}
	}
	return nil
}

func isAdState(s string) bool {
	switch s {
	case AdStateUnavailable, AdStateAvailable, AdStatePlayed, AdStateSkipped, AdStateError:
		return true
	}
	return false
}
