// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the given level. In the dev
// environment output goes through a human-readable console writer;
// everywhere else it is JSON. An unknown level falls back to info.
func New(w io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "wedding-rsvp").Logger()
}

// Default is New on stdout.
func Default(level, env string) zerolog.Logger {
	return New(os.Stdout, level, env)
}
