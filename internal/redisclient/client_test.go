package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAndRateLimit(t *testing.T) {
	// Integration test - requires a local Redis.
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	ok, err := client.AcquireLock(ctx, "sale:pi_test", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.AcquireLock(ctx, "sale:pi_test", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be reacquired")

	require.NoError(t, client.ReleaseLock(ctx, "sale:pi_test"))

	ok, err = client.AcquireLock(ctx, "sale:pi_test", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	for i := 0; i < 3; i++ {
		allowed, err := client.Allow(ctx, "downloads:order-test", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := client.Allow(ctx, "downloads:order-test", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request in the window must be refused")
}
