package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_FetchSlots(t *testing.T) {
	c := NewController(Config{MaxInFlightFetches: 2})

	require.NoError(t, c.AcquireFetch(t.Context()))
	require.NoError(t, c.AcquireFetch(t.Context()))
	assert.Equal(t, int64(2), c.InFlight())

	// Third should not fit
	assert.False(t, c.TryAcquireFetch())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireFetch(ctx), context.DeadlineExceeded)

	c.ReleaseFetch()
	assert.True(t, c.TryAcquireFetch())
	assert.Equal(t, int64(2), c.InFlight())
}

func TestController_FetchRate(t *testing.T) {
	c := NewController(Config{FetchesPerSecond: 1, FetchBurst: 1})

	assert.True(t, c.TryAcquireFetch())
	c.ReleaseFetch()

	// Bucket is empty until the next token arrives.
	assert.False(t, c.TryAcquireFetch())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireFetch(ctx))
	assert.Equal(t, int64(0), c.InFlight())
}

func TestController_RateFailureReleasesSlot(t *testing.T) {
	c := NewController(Config{MaxInFlightFetches: 1, FetchesPerSecond: 1})

	assert.True(t, c.TryAcquireFetch())
	c.ReleaseFetch()

	// Slot is free but the rate limiter denies: the slot must be returned.
	assert.False(t, c.TryAcquireFetch())
	assert.Equal(t, int64(0), c.InFlight())
}

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(t.Context(), 50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// limit exceeded
	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())
	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireFetch(t.Context()))
	assert.True(t, c.TryAcquireFetch())
	c.ReleaseFetch()
	assert.Equal(t, int64(0), c.InFlight())

	assert.NoError(t, c.AcquireMemory(t.Context(), 10))
	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, Config{}, c.Config())
}
