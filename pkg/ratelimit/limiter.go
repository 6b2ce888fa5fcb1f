package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "admin_limiter_wait_seconds",
	Help:    "Time requests spent waiting for the local rate limiter",
	Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

// Limiter is a local token bucket in front of the record store.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	err := l.limiter.Wait(ctx)
	limiterWaitSeconds.Observe(time.Since(start).Seconds())
	return err
}

// Limit returns the configured rate in requests per second.
func (l *Limiter) Limit() float64 {
	if l == nil {
		return float64(rate.Inf)
	}
	return float64(l.limiter.Limit())
}
