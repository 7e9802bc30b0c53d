// Package ratelimit paces outgoing requests to the remote service with a
// token bucket, so a wide fan-out cannot burst past what the service accepts.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealer_answer_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	rateLimitRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealer_answer_rate_limit_rejections_total",
		Help: "Total number of requests abandoned while waiting for a token",
	})
)

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate. Zero or negative
	// disables pacing.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the sustained rate.
	Burst int
}

// DefaultConfig returns a pacing configuration suited to the fan-out
// concurrency of the pipeline.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 20,
		Burst:             5,
	}
}

// Limiter gates requests through a token bucket.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
	waits   atomic.Int64
}

// NewLimiter creates a limiter from cfg. A non-positive rate yields a
// limiter that never blocks.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		rateLimitRejectionsTotal.Inc()
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	rateLimitWaitSeconds.Observe(waited.Seconds())
	l.waits.Add(1)

	if waited > 100*time.Millisecond {
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Request delayed by rate limiter")
	}

	return nil
}

// Unlimited reports whether the limiter never blocks.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Waits returns the number of requests admitted so far.
func (l *Limiter) Waits() int64 {
	return l.waits.Load()
}
