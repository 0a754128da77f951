// Package logging configures the process-wide zerolog logger, in the
// teacher's style (internal/shared/monitoring/logger.go): structured
// JSON by default, a pretty console writer for local development.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the logger's level and output format.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|text|pretty
}

// New builds a base logger with timestamp, caller, and a "service" field.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "notifyhub").
		Logger()
}
