package universe

import (
	"fmt"

	"github.com/quantara-labs/falcon/pkg/types"
)

// Default gate thresholds applied when the config leaves them zero.
const (
	DefaultMaxSpreadBps    = 8.0
	DefaultMinDepthUSD     = 50000.0
	DefaultMinVolume24hUSD = 5000000.0
)

// Bucket notional cutoffs on 24h quote volume.
const (
	majorsVolumeFloor  = 500000000.0
	midCapsVolumeFloor = 50000000.0
)

// GateConfig holds the liquidity thresholds a snapshot must clear before a
// signal is allowed to reach the sizer.
type GateConfig struct {
	MaxSpreadBps    float64 `json:"max_spread_bps"`
	MinDepthUSD     float64 `json:"min_depth_usd"`
	MinVolume24hUSD float64 `json:"min_volume_24h_usd"`
}

// Filter applies liquidity gates and classifies instruments into buckets.
type Filter struct {
	gates GateConfig
}

// NewFilter creates a filter, substituting defaults for zero thresholds.
func NewFilter(gates GateConfig) *Filter {
	if gates.MaxSpreadBps <= 0 {
		gates.MaxSpreadBps = DefaultMaxSpreadBps
	}
	if gates.MinDepthUSD <= 0 {
		gates.MinDepthUSD = DefaultMinDepthUSD
	}
	if gates.MinVolume24hUSD <= 0 {
		gates.MinVolume24hUSD = DefaultMinVolume24hUSD
	}
	return &Filter{gates: gates}
}

// Check runs the liquidity gates against a market snapshot. A failure is a
// normal rejection carrying a reason string, never an error.
func (f *Filter) Check(snap types.MarketSnapshot) (bool, string) {
	if snap.SpreadBps > f.gates.MaxSpreadBps {
		return false, fmt.Sprintf("spread %.2f bps above limit %.2f", snap.SpreadBps, f.gates.MaxSpreadBps)
	}
	if snap.BidDepthUSD < f.gates.MinDepthUSD || snap.AskDepthUSD < f.gates.MinDepthUSD {
		return false, fmt.Sprintf("depth bid=%.0f ask=%.0f below minimum %.0f",
			snap.BidDepthUSD, snap.AskDepthUSD, f.gates.MinDepthUSD)
	}
	if snap.QuoteVolume24h < f.gates.MinVolume24hUSD {
		return false, fmt.Sprintf("24h volume %.0f below minimum %.0f", snap.QuoteVolume24h, f.gates.MinVolume24hUSD)
	}
	return true, ""
}

// ClassifyBucket maps an instrument's 24h quote volume to a liquidity bucket.
func (f *Filter) ClassifyBucket(snap types.MarketSnapshot) types.Bucket {
	switch {
	case snap.QuoteVolume24h >= majorsVolumeFloor:
		return types.BucketMajors
	case snap.QuoteVolume24h >= midCapsVolumeFloor:
		return types.BucketMidCaps
	default:
		return types.BucketMicros
	}
}
