// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

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

	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
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

// Setup sets the global level and installs a timestamped logger as the
// global zerolog logger, which every component logger derives from.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
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
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Strategy outcomes (hit, stale, network) per request
//   - Cache misses and evictions
//   - Background revalidation results
//   - Sync items enqueued, retry backoff
//
// Info: Normal operation events
//   - Install, activation, superseded namespaces deleted
//   - Offline document served
//   - Sync queue drained
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Network failures answered from a stale entry
//   - Cache store errors (request bypasses the cache)
//   - Malformed push payloads
//   - Exhausted drain retries
//
// Error: Error conditions requiring attention
//   - Failed installs
//   - Rejected sync replays
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package (strategy, lifecycle, syncqueue, ...)
//   - rule: matched strategy rule name
//   - namespace: cache namespace name
//   - url: request URL
//   - queue: sync queue name
//   - status_code: HTTP status code
//   - duration: operation duration
//   - error_class: network error classification (client, server, network)
