package logging

import (
	"context"
	"log/slog"

	"ratingsync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldLibraryID is the standardized key for catalog library identifiers.
	FieldLibraryID = "library_id"
	// FieldStage is the standardized key for job stage names.
	FieldStage = "stage"
	// FieldJobUUID is the standardized key for a job's run token.
	FieldJobUUID = "job_uuid"
	// FieldCorrelationID is the standardized key for batch correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.LibraryIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldLibraryID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if token, ok := services.JobUUIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobUUID, token))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
