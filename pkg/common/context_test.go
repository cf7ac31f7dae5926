package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContext_UserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "u1")

	userID, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
}

func TestContext_MutationIDRoundTrip(t *testing.T) {
	ctx := WithMutationID(context.Background(), "m1")

	mutationID, ok := GetMutationID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "m1", mutationID)
}

func TestContext_RequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "r1")

	requestID, ok := GetRequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "r1", requestID)
}

func TestContext_StartTimeRoundTrip(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithStartTime(context.Background(), start)

	got, ok := GetStartTime(ctx)
	assert.True(t, ok)
	assert.Equal(t, start, got)
}

func TestContext_MissingValues(t *testing.T) {
	ctx := context.Background()

	_, ok := GetUserID(ctx)
	assert.False(t, ok)
	_, ok = GetMutationID(ctx)
	assert.False(t, ok)
	_, ok = GetRequestID(ctx)
	assert.False(t, ok)
	_, ok = GetStartTime(ctx)
	assert.False(t, ok)
}
