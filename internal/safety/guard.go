package safety

import (
	"context"
	"time"
)

// Guard composes a rate limiter and circuit breaker in front of an
// upstream: every call first acquires a token, then passes through the
// breaker. One Guard protects one upstream (an exchange API).
type Guard struct {
	limiter *RateLimiter
	breaker *CircuitBreaker
}

// NewGuard creates a guard with the given limits.
func NewGuard(name string, capacity, refillRate int, breaker BreakerConfig) *Guard {
	return &Guard{
		limiter: NewRateLimiter(name, capacity, refillRate),
		breaker: NewCircuitBreaker(name, breaker),
	}
}

// DefaultAPIGuard covers Bybit's per-key REST budget with headroom: burst
// of 20 calls, sustained 10/s, breaker opening after 5 straight failures.
func DefaultAPIGuard(name string) *Guard {
	return NewGuard(name, 20, 10, BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolOff:          30 * time.Second,
	})
}

// Do runs fn under the rate limit and circuit breaker.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.breaker.Do(fn)
}

// BreakerState exposes the breaker state for health reporting.
func (g *Guard) BreakerState() BreakerState {
	return g.breaker.State()
}
