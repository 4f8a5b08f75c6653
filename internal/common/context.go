package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeySender    contextKey = "sender"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithSender adds the messaging address of the submitter to the context
func WithSender(ctx context.Context, sender string) context.Context {
	return context.WithValue(ctx, ContextKeySender, sender)
}

// SenderFromContext extracts the submitter address from context
func SenderFromContext(ctx context.Context) string {
	if sender, ok := ctx.Value(ContextKeySender).(string); ok {
		return sender
	}
	return ""
}

// LoggerFrom decorates logger with the request-scoped attributes found in ctx.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if sender := SenderFromContext(ctx); sender != "" {
		logger = logger.With("sender", sender)
	}
	return logger
}
