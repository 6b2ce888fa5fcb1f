// Package logging configures the zerolog logger shared by the console and
// the synchronization packages.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForCollection binds logger to one record collection. Engine components
// receive their logger from the caller and scope it with this.
func ForCollection(logger zerolog.Logger, collection string) zerolog.Logger {
	return logger.With().Str("collection", collection).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page fetches and appends (page, generation, added)
//   - Dropped pages from superseded generations
//   - Cache revalidation (ETag, 304)
//   - Proximity observer transitions
//
// Info: Normal operation events
//   - Feed start, resync and close
//   - Console startup/shutdown
//   - Quota state recovered
//
// Warn: Warning conditions that don't prevent operation
//   - Page fetch failures (retried on the next signal)
//   - Rejected mutations
//   - Retry attempts and quota throttling
//   - Redis errors (cache and quota checks are skipped)
//
// Error: Error conditions requiring attention
//   - Requests that exhausted their retries
//   - Quota blocks
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package or subsystem
//   - collection: feed name (orders, products, users, requests)
//   - page, generation: pagination cursor of a fetch
//   - target_id, kind, consistency: mutation being applied
//   - endpoint, status_code, duration: store request
//   - error_class: client, server, rate_limit, network
//   - request_id: X-Request-ID sent to the store
