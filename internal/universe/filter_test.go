package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantara-labs/falcon/pkg/types"
)

func healthySnapshot() types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol:         "BTCUSDT",
		SpreadBps:      1.5,
		BidDepthUSD:    250000,
		AskDepthUSD:    240000,
		QuoteVolume24h: 800000000,
	}
}

func TestCheckPassesHealthyMarket(t *testing.T) {
	f := NewFilter(GateConfig{})

	pass, reason := f.Check(healthySnapshot())
	assert.True(t, pass)
	assert.Empty(t, reason)
}

func TestCheckRejectsWideSpread(t *testing.T) {
	f := NewFilter(GateConfig{})

	snap := healthySnapshot()
	snap.SpreadBps = 12.0
	pass, reason := f.Check(snap)
	assert.False(t, pass)
	assert.Contains(t, reason, "spread")
}

func TestCheckRejectsThinBook(t *testing.T) {
	f := NewFilter(GateConfig{})

	snap := healthySnapshot()
	snap.AskDepthUSD = 10000
	pass, reason := f.Check(snap)
	assert.False(t, pass)
	assert.Contains(t, reason, "depth")
}

func TestCheckRejectsLowVolume(t *testing.T) {
	f := NewFilter(GateConfig{})

	snap := healthySnapshot()
	snap.QuoteVolume24h = 1000000
	pass, reason := f.Check(snap)
	assert.False(t, pass)
	assert.Contains(t, reason, "24h volume")
}

func TestCustomThresholds(t *testing.T) {
	f := NewFilter(GateConfig{MaxSpreadBps: 2.0, MinDepthUSD: 300000, MinVolume24hUSD: 1000000})

	snap := healthySnapshot()
	pass, reason := f.Check(snap)
	assert.False(t, pass)
	assert.Contains(t, reason, "depth")
}

func TestClassifyBuckets(t *testing.T) {
	f := NewFilter(GateConfig{})

	snap := healthySnapshot()
	assert.Equal(t, types.BucketMajors, f.ClassifyBucket(snap))

	snap.QuoteVolume24h = 120000000
	assert.Equal(t, types.BucketMidCaps, f.ClassifyBucket(snap))

	snap.QuoteVolume24h = 8000000
	assert.Equal(t, types.BucketMicros, f.ClassifyBucket(snap))
}
