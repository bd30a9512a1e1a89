// Package logging builds the relay's structured logger. Adapted from
// ws/internal/single/monitoring/logger.go: same zerolog setup
// (timestamp, caller, pretty-console fallback), generalized from a
// custom LogLevel/LogFormat enum to plain config strings so it can be
// driven directly by internal/config's env-sourced fields.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the logger's verbosity and output encoding.
type Config struct {
	Level  string // trace, debug, info, warn, error, fatal
	Pretty bool   // human-readable console output instead of JSON
}

// New builds a zerolog.Logger per cfg and installs it as the package
// default level filter. The service field matches the convention the
// teacher's logger stamps onto every record.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "nostr-rs-relay").
		Logger()
}
