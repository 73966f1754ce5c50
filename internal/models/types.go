package models

// Repeat mode constants for channels
const (
	RepeatModeOff = "off"
	RepeatModeOne = "one"
	RepeatModeAll = "all"
)

// Ad state constants for ad breaks
const (
	AdStateUnavailable = "unavailable"
	AdStateAvailable   = "available"
	AdStatePlayed      = "played"
	AdStateSkipped     = "skipped"
	AdStateError       = "error"
)
