package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out outbound requests to a host, adding optional jitter on
// top of the steady rate. It is safe for concurrent use by multiple goroutines.
// A nil *Limiter never blocks.
type Limiter struct {
	lim      *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a limiter allowing rps requests per second with a burst
// of one. Jitter is clamped to [0, 1]. If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	return &Limiter{
		lim:      rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until the next request may proceed or ctx is done. With jitter
// configured it sleeps an extra random delay of up to jitter*interval.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}

	if err := l.lim.Wait(ctx); err != nil {
		return err
	}

	if l.jitter == 0 {
		return nil
	}

	extra := time.Duration(rand.Float64() * l.jitter * float64(l.interval))
	if extra <= 0 {
		return nil
	}

	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
