package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a mapping would exceed the mapped-bytes budget.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MappedBytesLimit is the hard limit for bytes held in live mappings.
	// If 0, no hard limit is enforced (only tracking).
	MappedBytesLimit int64

	// MaxConcurrentLoads is the maximum number of bulk loads running at once.
	// If 0, defaults to 1.
	MaxConcurrentLoads int64

	// IOLimitBytesPerSec is the maximum throughput for loader and snapshot IO.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages process-wide limits shared by all stores.
type Controller struct {
	cfg Config

	// Mapped bytes
	mapSem  *semaphore.Weighted // nil if unlimited
	mapUsed atomic.Int64

	// Concurrency
	loadSem *semaphore.Weighted

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentLoads <= 0 {
		cfg.MaxConcurrentLoads = 1
	}

	c := &Controller{
		cfg:     cfg,
		loadSem: semaphore.NewWeighted(cfg.MaxConcurrentLoads),
	}

	if cfg.MappedBytesLimit > 0 {
		c.mapSem = semaphore.NewWeighted(cfg.MappedBytesLimit)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMapping reserves bytes of the mapped-bytes budget.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking: the caller fails the open instead of waiting for another
// store to close.
func (c *Controller) AcquireMapping(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.mapSem != nil {
		if !c.mapSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.mapUsed.Add(bytes)
	return nil
}

// ReleaseMapping returns bytes to the budget.
func (c *Controller) ReleaseMapping(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.mapSem != nil {
		c.mapSem.Release(bytes)
	}
	c.mapUsed.Add(-bytes)
}

// MappedBytes returns the bytes currently reserved by live mappings.
func (c *Controller) MappedBytes() int64 {
	if c == nil {
		return 0
	}
	return c.mapUsed.Load()
}

// MappedBytesLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MappedBytesLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MappedBytesLimit
}

// AcquireLoad reserves a bulk-load slot. Blocks if all slots are busy.
func (c *Controller) AcquireLoad(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.loadSem.Acquire(ctx, 1)
}

// TryAcquireLoad reserves a bulk-load slot without blocking.
func (c *Controller) TryAcquireLoad() bool {
	if c == nil {
		return true
	}
	return c.loadSem.TryAcquire(1)
}

// ReleaseLoad releases a bulk-load slot.
func (c *Controller) ReleaseLoad() {
	if c == nil {
		return
	}
	c.loadSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests above the burst; split them.
	burst := c.ioLimiter.Burst()
	for bytes > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		bytes -= burst
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
