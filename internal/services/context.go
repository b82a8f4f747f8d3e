package services

import "context"

type contextKey string

const (
	libraryIDKey contextKey = "library_id"
	stageKey     contextKey = "stage"
	jobUUIDKey   contextKey = "job_uuid"
	requestIDKey contextKey = "request_id"
)

// WithLibraryID annotates context with the catalog library identifier.
func WithLibraryID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, libraryIDKey, id)
}

// LibraryIDFromContext extracts the library identifier if present.
func LibraryIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(libraryIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the job stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithJobUUID annotates context with the run token of the job being processed.
func WithJobUUID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobUUIDKey, id)
}

// JobUUIDFromContext returns the job run token if present.
func JobUUIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobUUIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
