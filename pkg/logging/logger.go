// Package logging provides structured logging configuration using zerolog.
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
	// Stdout is reserved for the submission verdict.
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

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level, falling back to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun returns a child logger tagged with the pipeline run and dataset.
// An empty dataset ID is omitted, since it is unknown until phase one.
func WithRun(logger zerolog.Logger, runID, datasetID string) zerolog.Logger {
	ctx := logger.With().Str("run_id", runID)
	if datasetID != "" {
		ctx = ctx.Str("dataset_id", datasetID)
	}
	return ctx.Logger()
}

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Individual vehicle and dealer fetches
//   - Cache hit/miss per endpoint
//   - Rate limiter waits
//
// Info: run milestones
//   - Dataset resolved, vehicle IDs listed
//   - Phase start/finish with counts and durations
//   - Submission verdict
//
// Warn: recoverable per-item failures
//   - Vehicle fetch failed (vehicle dropped)
//   - Cache errors (fallback to direct request)
//
// Error: run-aborting failures
//   - Dataset unavailable
//   - Dealer resolution failed
//   - Submission failed
//
// Context Fields:
//   - component: emitting package (client, cache, pipeline, ...)
//   - run_id: pipeline run identifier
//   - dataset_id: remote dataset identifier
//   - endpoint: normalised request path
//   - vehicle_id / dealer_id: item being fetched
//   - phase: pipeline phase (dataset, vehicles, dealers, submit)
//   - error_class: client, server or network
