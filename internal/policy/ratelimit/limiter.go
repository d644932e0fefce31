// Package ratelimit implements the crawl's global request gate: a token
// bucket enforcing the minimum interval between request starts. One instance
// is shared by every call site (listing and detail fetches alike), keeping at
// most one request in flight per interval process-wide.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/metrics"
)

// Limiter spaces request starts at least 1/RequestsPerSecond apart.
type Limiter struct {
	limiter *rate.Limiter
}

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerSecond float64
}

// New creates the gate. A non-positive rate disables limiting, which only
// makes sense in tests.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(r, 1)}
}

// Wait blocks until the next request may start, respecting the context.
// Delays beyond a millisecond are recorded as rate-limit waits.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}
