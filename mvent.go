// Package mvent is a shared-memory IPC core: a named, persistent,
// memory-mapped key-value pool with TTL and optional encryption, a
// change-watching event dispatcher on top of it, and derived pub/sub
// primitives (stream, rooms, in-memory request/response routing) whose
// state lives entirely in pool keys.
//
// ConfigureLogging is optional; library consumers that never call it get
// zerolog's own default logger.
package mvent

import (
	"io"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingOptions controls ConfigureLogging.
type LoggingOptions struct {
	Verbose bool
	// Format selects "console" (human-readable, default) or "json".
	Format string
}

// ConfigureLogging sets the package-wide zerolog.Logger, attaching a
// stable machine_id field so logs from two processes attached to the same
// pool on the same host can be correlated without a tracing system.
func ConfigureLogging(opts LoggingOptions) {
	var writer io.Writer = zerolog.NewConsoleWriter()
	if opts.Format == "json" {
		writer = os.Stdout
	}

	id, err := machineid.ProtectedID("mvent")
	if err != nil {
		id = "unknown"
	}

	logger := zerolog.New(writer).With().Timestamp().Str("machine_id", id).Logger()
	if opts.Verbose {
		log.Logger = logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = logger.Level(zerolog.InfoLevel)
	}
}
