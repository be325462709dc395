// Package resource bounds the footprint of resync passes.
//
// A resync rewrites and patches whole index files, which is heavy sequential
// I/O. The Controller lets the embedding application cap the throughput of
// that I/O and the number of tables being resynced at the same time. A single
// resync pass stays strictly single-threaded; the concurrency bound only
// gates independent passes against different tables.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentResyncs is the maximum number of tables resyncing at once.
	// If 0, defaults to 1.
	MaxConcurrentResyncs int64

	// IOLimitBytesPerSec is the maximum rewrite/patch throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages resync concurrency and I/O throughput.
type Controller struct {
	resyncSem *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentResyncs <= 0 {
		cfg.MaxConcurrentResyncs = 1
	}

	c := &Controller{
		resyncSem: semaphore.NewWeighted(cfg.MaxConcurrentResyncs),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireResync reserves a resync slot, blocking until one is free or ctx is
// canceled. A nil Controller never blocks.
func (c *Controller) AcquireResync(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.resyncSem.Acquire(ctx, 1)
}

// ReleaseResync releases a resync slot.
func (c *Controller) ReleaseResync() {
	if c == nil {
		return
	}
	c.resyncSem.Release(1)
}

// AcquireIO waits until the I/O limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
