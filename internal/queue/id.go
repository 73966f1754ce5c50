// Package queue decides which unit of media plays next. It resolves content and ad
// units from a timeline snapshot, keeps a bounded chain of pre-loading units and
// reconciles that chain when the timeline changes.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/stwalsh4118/cadence/internal/timeline"
)

// Unit is the kind of playable unit a MediaPeriodID refers to: either Content or Ad.
type Unit interface {
	isUnit()
}

// Content is a content unit. NextAdGroupIndex is the ad group that ends it, or
// timeline.IndexUnset when it plays to the end of the period.
type Content struct {
	NextAdGroupIndex int
}

// Ad is a single ad inside an ad group.
type Ad struct {
	GroupIndex   int
	IndexInGroup int
}

func (Content) isUnit() {}
func (Ad) isUnit()      {}

// MediaPeriodID identifies one playable unit of a period. IDs are comparable with ==.
type MediaPeriodID struct {
	PeriodUID string

	// WindowSequenceNumber distinguishes repeated plays of the same window.
	WindowSequenceNumber int64

	Unit Unit
}

// NewContentID creates the id of a content unit.
func NewContentID(periodUID string, windowSequenceNumber int64, nextAdGroupIndex int) MediaPeriodID {
	return MediaPeriodID{
		PeriodUID:            periodUID,
		WindowSequenceNumber: windowSequenceNumber,
		Unit:                 Content{NextAdGroupIndex: nextAdGroupIndex},
	}
}

// NewAdID creates the id of an ad unit.
func NewAdID(periodUID string, groupIndex, indexInGroup int, windowSequenceNumber int64) MediaPeriodID {
	return MediaPeriodID{
		PeriodUID:            periodUID,
		WindowSequenceNumber: windowSequenceNumber,
		Unit:                 Ad{GroupIndex: groupIndex, IndexInGroup: indexInGroup},
	}
}

// IsAd reports whether the id refers to an ad.
func (id MediaPeriodID) IsAd() bool {
	_, ok := id.Unit.(Ad)
	return ok
}

// Ad returns the ad unit, if the id refers to one.
func (id MediaPeriodID) Ad() (Ad, bool) {
	ad, ok := id.Unit.(Ad)
	return ad, ok
}

// Content returns the content unit, if the id refers to one.
func (id MediaPeriodID) Content() (Content, bool) {
	c, ok := id.Unit.(Content)
	return c, ok
}

// NextAdGroupIndex returns the next ad group of a content unit. Ads report IndexUnset.
func (id MediaPeriodID) NextAdGroupIndex() int {
	if c, ok := id.Unit.(Content); ok {
		return c.NextAdGroupIndex
	}
	return timeline.IndexUnset
}

// String returns a compact representation for logs
func (id MediaPeriodID) String() string {
	switch u := id.Unit.(type) {
	case Ad:
		return fmt.Sprintf("%s#%d/ad[%d,%d]", id.PeriodUID, id.WindowSequenceNumber, u.GroupIndex, u.IndexInGroup)
	case Content:
		return fmt.Sprintf("%s#%d/content(next=%d)", id.PeriodUID, id.WindowSequenceNumber, u.NextAdGroupIndex)
	default:
		return fmt.Sprintf("%s#%d/invalid", id.PeriodUID, id.WindowSequenceNumber)
	}
}

type idJSON struct {
	PeriodUID            string `json:"period_uid"`
	WindowSequenceNumber int64  `json:"window_sequence_number"`
	Type                 string `json:"type"`
	AdGroupIndex         *int   `json:"ad_group_index,omitempty"`
	AdIndexInGroup       *int   `json:"ad_index_in_group,omitempty"`
	NextAdGroupIndex     *int   `json:"next_ad_group_index,omitempty"`
}

// MarshalJSON flattens the unit into type-tagged fields.
func (id MediaPeriodID) MarshalJSON() ([]byte, error) {
	out := idJSON{PeriodUID: id.PeriodUID, WindowSequenceNumber: id.WindowSequenceNumber}
	switch u := id.Unit.(type) {
	case Ad:
		out.Type = "ad"
		out.AdGroupIndex = &u.GroupIndex
		out.AdIndexInGroup = &u.IndexInGroup
	case Content:
		out.Type = "content"
		out.NextAdGroupIndex = &u.NextAdGroupIndex
	}
	return json.Marshal(out)
}
