// Package logging configures zerolog for the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the given level. format is "json" or
// "console". The global zerolog level is set as well.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("incorrect log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("incorrect log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Must is New writing to stderr that falls back to info/console on bad input.
func Must(level, format string) zerolog.Logger {
	logger, err := New(os.Stderr, level, format)
	if err != nil {
		logger, _ = New(os.Stderr, "info", "console")
		logger.Warn().Err(err).Msg("Invalid logging configuration, using defaults")
	}
	return logger
}
