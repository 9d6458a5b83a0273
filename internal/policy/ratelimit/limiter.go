// Package ratelimit spaces out fetches with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/storefront-crawler/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum gap between two fetches across all workers.
	// Zero disables limiting.
	MinInterval time.Duration
}

// Limiter enforces a fixed minimum interval between fetches.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	metrics.Init()
	return &Limiter{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next fetch may start, respecting the context.
func (l *Limiter) Wait(ctx context.Context, _ string) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}
