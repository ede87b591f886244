package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// EnsureTraceID returns a context carrying a trace ID, minting a fresh
// UUID when none is present. Batch entry points call this so every log
// line belonging to one forecast run shares the same trace_id.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.New().String())
}

// WithComponent returns a logger tagged with the pipeline component
// emitting the records, e.g. "demand-forecaster".
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError returns a logger tagged with the error message. A nil error
// leaves the logger unchanged.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
