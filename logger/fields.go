package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
const (
	FieldRunID     = "run_id"
	FieldComponent = "component"

	// Records
	FieldRecordID = "record_id"
	FieldIndex    = "index"
	FieldURL      = "url"
	FieldKey      = "key"
	FieldStore    = "store"

	// Timing
	FieldDurationMS = "duration_ms"

	FieldError = "error"

	// Counts and sizes
	FieldCount     = "count"
	FieldSize      = "size"
	FieldWorkers   = "workers"
	FieldBatchSize = "batch_size"
	FieldWithImage = "with_image"

	FieldFile = "file"
	FieldDir  = "dir"
)

type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	componentKey contextKey = "logger_component"
)

// WithRunID adds an ingest run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID stored by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context as key-value pairs.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns the global logger with the run ID and component
// from ctx already attached.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
// Example:
//
//	p := &Processor{logger: logger.ComponentLogger("ix.catalog")}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
