package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldResourceID identifies the lendable resource a log line concerns.
	FieldResourceID = "resource_id"
	// FieldBorrowerID identifies the borrower a log line concerns.
	FieldBorrowerID = "borrower_id"
	// FieldRecordID is the public (ULID) identifier of a lending record.
	FieldRecordID = "record_id"
	// FieldBatchID is the bulk batch identifier.
	FieldBatchID = "batch_id"
	// FieldActor is the operator performing the action.
	FieldActor = "actor"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings for filtering.
	FieldEventType = "event_type"
)

type contextKey string

const (
	batchIDKey     contextKey = "batch_id"
	actorKey       contextKey = "actor"
	correlationKey contextKey = "correlation_id"
)

// WithBatchID returns a child context carrying the bulk batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withString(ctx, batchIDKey, id)
}

// WithActor returns a child context carrying the acting operator.
func WithActor(ctx context.Context, actor string) context.Context {
	return withString(ctx, actorKey, actor)
}

// WithCorrelationID returns a child context carrying a request correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withString(ctx, correlationKey, id)
}

// BatchIDFromContext extracts the bulk batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, batchIDKey)
}

// ActorFromContext extracts the acting operator if present.
func ActorFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, actorKey)
}

// CorrelationIDFromContext extracts the correlation id if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, correlationKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, id))
	}
	if actor, ok := ActorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldActor, actor))
	}
	if rid, ok := CorrelationIDFromContext(ctx); ok {
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
