package errors

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

// GenerateRequestID returns a new lexically sortable request ID.
func GenerateRequestID() string {
	return ulid.Make().String()
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
