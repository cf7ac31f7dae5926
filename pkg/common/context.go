package common

import (
	"context"
	"time"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyUserID     ContextKey = "user_id"
	ContextKeyMutationID ContextKey = "mutation_id"
	ContextKeyRequestID  ContextKey = "request_id"
	ContextKeyStartTime  ContextKey = "start_time"
)

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok
}

// WithMutationID adds the mutation ID to context so gateway and log lines
// can be correlated back to the issuing pipeline
func WithMutationID(ctx context.Context, mutationID string) context.Context {
	return context.WithValue(ctx, ContextKeyMutationID, mutationID)
}

// GetMutationID extracts the mutation ID from context
func GetMutationID(ctx context.Context) (string, bool) {
	mutationID, ok := ctx.Value(ContextKeyMutationID).(string)
	return mutationID, ok
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetStartTime extracts start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time)
	return startTime, ok
}
