package channel

import "errors"

// Custom channel service errors
var (
	// ErrDuplicateChannelName indicates a channel with the same name already exists
	ErrDuplicateChannelName = errors.New("channel name already exists")

	// ErrInvalidRepeatMode indicates a repeat mode other than off, one or all
	ErrInvalidRepeatMode = errors.New("repeat mode must be one of off, one, all")

	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")

	// ErrMediaNotFound indicates the requested media does not exist
	ErrMediaNotFound = errors.New("media not found")

	// ErrPlaylistItemNotFound indicates the requested playlist item does not exist
	ErrPlaylistItemNotFound = errors.New("playlist item not found")

	// ErrAdBreakNotFound indicates the requested ad break does not exist
	ErrAdBreakNotFound = errors.New("ad break not found")

	// ErrInvalidAdBreak indicates ad break fields or an ad state update were rejected
	ErrInvalidAdBreak = errors.New("invalid ad break")

	// ErrInvalidPosition indicates the position is negative
	ErrInvalidPosition = errors.New("position must be non-negative")

	// ErrEmptyPlaylist indicates the playlist has no items
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

// IsDuplicateName checks if the error is a duplicate channel name error
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateChannelName)
}

// IsChannelNotFound checks if the error is a channel not found error
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// IsMediaNotFound checks if the error is a media not found error
func IsMediaNotFound(err error) bool {
	return errors.Is(err, ErrMediaNotFound)
}

// IsPlaylistItemNotFound checks if the error is a playlist item not found error
func IsPlaylistItemNotFound(err error) bool {
	return errors.Is(err, ErrPlaylistItemNotFound)
}

// IsAdBreakNotFound checks if the error is an ad break not found error
func IsAdBreakNotFound(err error) bool {
	return errors.Is(err, ErrAdBreakNotFound)
}

// IsValidationError reports whether err was caused by invalid caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRepeatMode) ||
		errors.Is(err, ErrInvalidAdBreak) ||
		errors.Is(err, ErrInvalidPosition)
}
