package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the caller's identity key.
	IdentityKey contextKey = "identity"

	// EndpointKey is the context key for the normalized endpoint.
	EndpointKey contextKey = "endpoint"

	// TierKey is the context key for the effective tier name.
	TierKey contextKey = "tier"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithIdentity adds the caller's identity key to the context.
func WithIdentity(ctx context.Context, identityKey string) context.Context {
	return context.WithValue(ctx, IdentityKey, identityKey)
}

// GetIdentity retrieves the caller's identity key from the context.
func GetIdentity(ctx context.Context) string {
	if id, ok := ctx.Value(IdentityKey).(string); ok {
		return id
	}
	return ""
}

// WithEndpoint adds the normalized endpoint to the context.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, EndpointKey, endpoint)
}

// GetEndpoint retrieves the normalized endpoint from the context.
func GetEndpoint(ctx context.Context) string {
	if endpoint, ok := ctx.Value(EndpointKey).(string); ok {
		return endpoint
	}
	return ""
}

// WithTier adds the effective tier name to the context.
func WithTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, TierKey, tier)
}

// GetTier retrieves the effective tier name from the context.
func GetTier(ctx context.Context) string {
	if tier, ok := ctx.Value(TierKey).(string); ok {
		return tier
	}
	return ""
}

// ContextFields extracts the known request-scoped fields from the context
// as key-value pairs suitable for slog's With.
func ContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if id := GetIdentity(ctx); id != "" {
		fields = append(fields, "identity", id)
	}
	if endpoint := GetEndpoint(ctx); endpoint != "" {
		fields = append(fields, "endpoint", endpoint)
	}
	if tier := GetTier(ctx); tier != "" {
		fields = append(fields, "tier", tier)
	}

	return fields
}
