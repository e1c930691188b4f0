// Package logging provides structured logging for the salesetl pipeline.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format for production
//
//	// Get a component logger
//	log := logging.Component("sales_loader")
//	log.Info("stored partition", "table", table, "rows", n)
//
//	// Log with run context
//	logging.WithContext(ctx).Error("partition failed", "error", err)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stdout, level, jsonFormat)
}

// InitWriter is Init with an explicit output destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a config level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Component loggers resolve the global logger lazily, so package-level
// component loggers pick up a later Init.
//
// Example:
//
//	log := logging.Component("aggregator")
//	log.Info("started") // Output: time=... level=INFO component=aggregator msg=started
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{attrs: []slog.Attr{slog.String("component", name)}})
}

// WithContext returns a logger that includes context values.
// This is useful for run-scoped logging with run IDs and partition keys.
func WithContext(ctx context.Context) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With(contextAttrs(ctx)...)
}

// FromContext returns l enriched with the run-scoped values found in ctx.
func FromContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	args := contextAttrs(ctx)
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}

func contextAttrs(ctx context.Context) []any {
	var args []any

	if runID, ok := ctx.Value(contextKeyRunID).(string); ok {
		args = append(args, "run_id", runID)
	}
	if asset, ok := ctx.Value(contextKeyAsset).(string); ok {
		args = append(args, "asset", asset)
	}
	if partition, ok := ctx.Value(contextKeyPartition).(string); ok {
		args = append(args, "partition", partition)
	}

	return args
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyRunID contextKey = iota
	contextKeyAsset
	contextKeyPartition
)

// ContextWithRunID adds a pipeline run ID to the context for logging.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKeyRunID, runID)
}

// ContextWithAsset adds the name of the materialized asset to the context.
func ContextWithAsset(ctx context.Context, asset string) context.Context {
	return context.WithValue(ctx, contextKeyAsset, asset)
}

// ContextWithPartition adds a partition key to the context for logging.
func ContextWithPartition(ctx context.Context, partition string) context.Context {
	return context.WithValue(ctx, contextKeyPartition, partition)
}

// RunID returns the run ID stored in ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRunID).(string)
	return id
}

// componentHandler forwards to the current global handler with fixed attrs.
type componentHandler struct {
	attrs []slog.Attr
	group string
}

func (h *componentHandler) target() slog.Handler {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	var t slog.Handler = Logger.Handler()
	if len(h.attrs) > 0 {
		t = t.WithAttrs(h.attrs)
	}
	if h.group != "" {
		t = t.WithGroup(h.group)
	}
	return t
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.group != "" {
		return h.target().WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{attrs: merged}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	if h.group != "" {
		return h.target().WithGroup(name)
	}
	return &componentHandler{attrs: h.attrs, group: name}
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	Logger.Debug(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	Logger.Error(msg, args...)
}
