// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
)

// Log is the global logger instance
var Log zerolog.Logger

// Init initializes the global logger with the specified level and output format
func Init(level string, pretty bool) {
	InitWithWriter(os.Stdout, level, pretty)
}

// InitWithWriter initializes the global logger writing to w
func InitWithWriter(w io.Writer, level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	output := w
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	zerolog.SetGlobalLevel(parseLogLevel(level))

	// Timestamp and caller on every entry
	Log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Component returns a child of the global logger tagged with a component name
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}

// parseLogLevel converts a string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
