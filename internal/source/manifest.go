package source

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Eyevinn/hls-m3u8/m3u8"
)

const microsPerSecond = 1_000_000

// ErrNotMediaPlaylist is returned for multivariant playlists, which carry no segments
var ErrNotMediaPlaylist = errors.New("manifest is not a media playlist")

// Manifest is the part of an HLS media playlist that shapes a window. Times are in
// microseconds.
type Manifest struct {
	// Duration is the sum of the listed segment durations.
	Duration int64 `json:"duration_us"`

	TargetDuration int64  `json:"target_duration_us"`
	MediaSequence  uint64 `json:"media_sequence"`
	SegmentCount   int    `json:"segment_count"`

	// Closed is set by EXT-X-ENDLIST; an open playlist is still growing.
	Closed bool `json:"closed"`
}

// RemovedDuration estimates how much of the stream slid out of the playlist before
// its first listed segment.
func (m Manifest) RemovedDuration() int64 {
	return int64(m.MediaSequence) * m.TargetDuration
}

// ParseManifest decodes an HLS media playlist
func ParseManifest(r io.Reader) (*Manifest, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, ErrNotMediaPlaylist
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, ErrNotMediaPlaylist
	}

	m := &Manifest{
		TargetDuration: int64(media.TargetDuration) * microsPerSecond,
		MediaSequence:  media.SeqNo,
		Closed:         media.Closed,
	}

	var seconds float64
	count := int(media.Count())
	for i, seg := range media.Segments {
		if i >= count {
			break
		}
		if seg == nil {
			continue
		}
		seconds += seg.Duration
		m.SegmentCount++
	}
	m.Duration = int64(math.Round(seconds * microsPerSecond))

	return m, nil
}

// ReadManifest parses the media playlist stored at path
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseManifest(f)
}
