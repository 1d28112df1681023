package safety

import (
	"sync"
	"time"

	coreerrors "github.com/quantara-labs/falcon/internal/errors"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	CoolOff          time.Duration // how long the breaker stays open
}

// CircuitBreaker sheds load from a failing upstream: after a run of
// failures it rejects calls outright until the cool-off passes, then
// probes with a limited number of half-open calls.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	nextAttempt time.Time
}

// NewCircuitBreaker creates a breaker. Zero config fields use defaults.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.CoolOff <= 0 {
		config.CoolOff = 30 * time.Second
	}
	return &CircuitBreaker{name: name, config: config, state: BreakerClosed}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Do runs fn unless the breaker is open. An open breaker returns a
// retryable transient error so callers back off instead of failing hard.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if !cb.allow() {
		return coreerrors.New(coreerrors.CategoryExecutionTransient, "safety", cb.name,
			"circuit breaker open")
	}

	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if time.Now().Before(cb.nextAttempt) {
			return false
		}
		cb.state = BreakerHalfOpen
		cb.successes = 0
	}
	return true
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		switch cb.state {
		case BreakerHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.state = BreakerClosed
				cb.failures = 0
			}
		case BreakerClosed:
			cb.failures = 0
		}
		return
	}

	cb.failures++
	if cb.state == BreakerHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = BreakerOpen
		cb.nextAttempt = time.Now().Add(cb.config.CoolOff)
	}
}
