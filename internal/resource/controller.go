package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MaxInFlightFetches is the maximum number of concurrent fetches.
	// If 0, fetch concurrency is not limited by the controller.
	MaxInFlightFetches int64

	// FetchesPerSecond is the sustained rate at which fetches may start.
	// If 0, unlimited.
	FetchesPerSecond float64

	// FetchBurst is the token bucket size for FetchesPerSecond.
	// If 0, defaults to 1.
	FetchBurst int

	// MemoryLimitBytes is the hard limit for item cache memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64
}

// Controller manages fetch concurrency, fetch rate and memory.
type Controller struct {
	cfg Config

	// Fetches
	fetchSem     *semaphore.Weighted // nil if unlimited
	fetchLimiter *rate.Limiter       // nil if unlimited
	inFlight     atomic.Int64

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.FetchBurst <= 0 {
		cfg.FetchBurst = 1
	}

	c := &Controller{cfg: cfg}

	if cfg.MaxInFlightFetches > 0 {
		c.fetchSem = semaphore.NewWeighted(cfg.MaxInFlightFetches)
	}

	if cfg.FetchesPerSecond > 0 {
		c.fetchLimiter = rate.NewLimiter(rate.Limit(cfg.FetchesPerSecond), cfg.FetchBurst)
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	return c
}

// Config returns the limits the controller was created with.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireFetch blocks until a fetch slot is free and the rate limiter admits
// one more fetch. Every successful call must be paired with ReleaseFetch.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.fetchSem != nil {
		if err := c.fetchSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if c.fetchLimiter != nil {
		if err := c.fetchLimiter.Wait(ctx); err != nil {
			if c.fetchSem != nil {
				c.fetchSem.Release(1)
			}
			return err
		}
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireFetch attempts to reserve a fetch slot without blocking.
func (c *Controller) TryAcquireFetch() bool {
	if c == nil {
		return true
	}
	if c.fetchSem != nil && !c.fetchSem.TryAcquire(1) {
		return false
	}
	if c.fetchLimiter != nil && !c.fetchLimiter.AllowN(time.Now(), 1) {
		if c.fetchSem != nil {
			c.fetchSem.Release(1)
		}
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseFetch releases a fetch slot.
func (c *Controller) ReleaseFetch() {
	if c == nil {
		return
	}
	if c.fetchSem != nil {
		c.fetchSem.Release(1)
	}
	c.inFlight.Add(-1)
}

// InFlight returns the number of fetches currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireMemory reserves memory, blocking until it is available.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}
