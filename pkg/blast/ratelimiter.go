package blast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval keeps outbound traffic at no more than 3 requests per second
const DefaultMinInterval = 334 * time.Millisecond

// RateLimiter enforces a minimum spacing between outbound requests to the
// remote service. One instance is shared by every search in the process.
// It is a token bucket with burst 1 driven by the injected clock, so each
// reservation acts at least one interval after the previous one.
type RateLimiter struct {
	limiter *rate.Limiter
	clock   Clock

	// reserveMu keeps clock reads and reservations in the same order
	reserveMu sync.Mutex

	// onRelease observes the time each reservation acts
	onRelease func(time.Time)
}

// NewRateLimiter creates a rate limiter. A nil clock selects the system clock.
func NewRateLimiter(interval time.Duration, clock Clock) *RateLimiter {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		clock:   clock,
	}
}

// Acquire blocks until the caller's reservation acts. The only error is ctx
// being done, in which case the reservation is handed back.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.reserveMu.Lock()
	now := r.clock.Now()
	reservation := r.limiter.ReserveN(now, 1)
	r.reserveMu.Unlock()

	if !reservation.OK() {
		return fmt.Errorf("rate limiter cannot grant a request")
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		if err := r.clock.Sleep(ctx, delay); err != nil {
			reservation.CancelAt(r.clock.Now())
			return err
		}
	}

	if r.onRelease != nil {
		r.onRelease(now.Add(delay))
	}
	return nil
}
