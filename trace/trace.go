// Package trace carries request and fetch-chain identifiers through contexts
// so outbound API calls and log lines can be correlated.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	chainIDKey   contextKey = "chain_id"

	// HeaderXRequestID is the header used to propagate request IDs to the lock API
	HeaderXRequestID = "X-Request-ID"
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// WithRequestID stores a request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from ctx or a newly generated one.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return NewID()
}

// WithChainID tags ctx with the ID of a fetch chain. Every attempt and retry
// of one logical request shares the chain ID.
func WithChainID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chainIDKey, id)
}

// ChainIDFromContext returns the fetch chain ID in ctx, if any.
func ChainIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(chainIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}
