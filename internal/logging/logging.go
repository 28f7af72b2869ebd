// Package logging builds the zerolog logger used by the server: a
// human-readable console writer while developing and JSON lines otherwise.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// TimeFormat is ISO-8601 in UTC with millisecond precision, the same shape
// the response envelope uses for its timestamp.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Options selects the output shape.
type Options struct {
	// Level is a zerolog level name; unknown names fall back to info.
	Level string
	// Format is "console", "json" or "auto". Auto picks console in
	// development and JSON everywhere else.
	Format      string
	Development bool
	NoColor     bool
}

// New returns a logger writing to w (stderr when nil).
func New(w io.Writer, opts Options) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	zerolog.TimeFieldFormat = TimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	if useConsole(opts) {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: TimeFormat,
			NoColor:    opts.NoColor || os.Getenv("NO_COLOR") != "",
		}
	}

	logger := zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()

	if opts.Development {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func useConsole(opts Options) bool {
	switch opts.Format {
	case "console", "pretty":
		return true
	case "json":
		return false
	default:
		return opts.Development
	}
}
