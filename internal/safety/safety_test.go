package safety

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/quantara-labs/falcon/internal/errors"
)

func failing() error { return fmt.Errorf("upstream down") }

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", BreakerConfig{FailureThreshold: 3, CoolOff: time.Hour})

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Do(failing))
	}
	assert.Equal(t, BreakerOpen, cb.State())

	// Calls are now shed without invoking the function.
	called := false
	err := cb.Do(func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)

	var ce *coreerrors.CoreError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, coreerrors.CategoryExecutionTransient, ce.Category)
	assert.True(t, ce.IsRetryable())
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		CoolOff:          10 * time.Millisecond,
	})

	assert.Error(t, cb.Do(failing))
	assert.Error(t, cb.Do(failing))
	assert.Equal(t, BreakerOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	ok := func() error { return nil }
	require.NoError(t, cb.Do(ok))
	assert.Equal(t, BreakerHalfOpen, cb.State())
	require.NoError(t, cb.Do(ok))
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", BreakerConfig{
		FailureThreshold: 2,
		CoolOff:          10 * time.Millisecond,
	})

	assert.Error(t, cb.Do(failing))
	assert.Error(t, cb.Do(failing))
	time.Sleep(15 * time.Millisecond)

	assert.Error(t, cb.Do(failing)) // probe fails
	assert.Equal(t, BreakerOpen, cb.State())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", BreakerConfig{FailureThreshold: 2, CoolOff: time.Hour})

	assert.Error(t, cb.Do(failing))
	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Error(t, cb.Do(failing))
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter("test", 3, 1)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter("test", 1, 100) // 100 tokens/s

	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow())
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter("test", 1, 1)
	require.True(t, rl.Allow()) // drain

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardComposesLimiterAndBreaker(t *testing.T) {
	g := NewGuard("test", 10, 10, BreakerConfig{FailureThreshold: 2, CoolOff: time.Hour})
	ctx := context.Background()

	require.NoError(t, g.Do(ctx, func() error { return nil }))

	assert.Error(t, g.Do(ctx, failing))
	assert.Error(t, g.Do(ctx, failing))
	assert.Equal(t, BreakerOpen, g.BreakerState())

	called := false
	assert.Error(t, g.Do(ctx, func() error { called = true; return nil }))
	assert.False(t, called)
}
