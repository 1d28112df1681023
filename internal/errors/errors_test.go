package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CategoryGateRejected, "universe", "BTCUSDT", "spread too wide")
	assert.Contains(t, err.Error(), "GATE_REJECTED")
	assert.Contains(t, err.Error(), "spread too wide")

	wrapped := Wrap(fmt.Errorf("dial tcp: timeout"), CategoryExecutionTransient, "exchange", "PlaceOrder")
	assert.Contains(t, wrapped.Error(), "dial tcp")
}

func TestUnwrapChain(t *testing.T) {
	base := stderrors.New("boom")
	wrapped := Wrap(base, CategoryExecutionTransient, "exchange", "PlaceOrder")
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CategoryExecutionTransient, "exchange", "PlaceOrder"))
	assert.Nil(t, Categorize(nil, "exchange", "PlaceOrder"))
}

func TestRetryabilityDefaults(t *testing.T) {
	assert.True(t, New(CategoryExecutionTransient, "exchange", "op", "m").IsRetryable())
	assert.True(t, New(CategoryRateLimit, "exchange", "op", "m").IsRetryable())
	assert.False(t, New(CategoryGateRejected, "universe", "op", "m").IsRetryable())
	assert.False(t, New(CategoryConfig, "config", "op", "m").IsRetryable())

	overridden := New(CategoryExecutionTransient, "exchange", "op", "m").WithRetryable(false)
	assert.False(t, overridden.IsRetryable())
}

func TestOnlyStartupCategoriesAreFatal(t *testing.T) {
	assert.True(t, NewConfigError("config", "Validate", "leverage out of range").IsFatal())
	assert.True(t, New(CategoryCredentials, "exchange", "init", "missing key").IsFatal())
	assert.False(t, NewSizingRejectedError("risk", "BTCUSDT", "no factor passed").IsFatal())
	assert.False(t, NewStateInconsistencyError("bot", "reconcile", "closed upstream").IsFatal())
}

func TestCategorizeByMessage(t *testing.T) {
	cases := []struct {
		msg      string
		expected Category
	}{
		{"Unauthorized: bad api key", CategoryCredentials},
		{"429 too many requests", CategoryRateLimit},
		{"position not found", CategoryStateInconsistency},
		{"connection reset by peer", CategoryExecutionTransient},
	}
	for _, tc := range cases {
		got := Categorize(stderrors.New(tc.msg), "exchange", "op")
		assert.Equal(t, tc.expected, got.Category, tc.msg)
	}
}

func TestCategorizePassesThroughCoreError(t *testing.T) {
	orig := NewGateRejectedError("universe", "BTCUSDT", "thin book")
	got := Categorize(orig, "other", "op")
	require.Same(t, orig, got)
}
