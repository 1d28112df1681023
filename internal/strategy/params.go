package strategy

import (
	"time"

	"github.com/quantara-labs/falcon/pkg/types"
)

// SweepParams are the per-bucket knobs of the liquidity-sweep reversion
// strategy. Micros need deeper sweeps relative to ATR because their wicks
// are noisier.
type SweepParams struct {
	SweepATRx       float64       `json:"sweep_atr_x"`       // minimum wick beyond level, in ATRs
	SLATRx          float64       `json:"sl_atr_x"`          // stop distance beyond sweep extreme
	MinTailToBody   float64       `json:"min_tail_to_body"`  // sweep-bar wick/body minimum
	SkipVolumeRatio float64       `json:"skip_volume_ratio"` // at/above this the sweep is informational
	DivergenceBars  int           `json:"divergence_bars"`   // RSI divergence lookback
	TriggerWindow   int           `json:"trigger_window"`    // bars allowed between sweep and trigger
	TimeStop        time.Duration `json:"time_stop"`
}

// VWAPParams are the per-bucket knobs of the VWAP mean-reversion strategy.
type VWAPParams struct {
	SLATRx          float64       `json:"sl_atr_x"`
	RSILongGate     float64       `json:"rsi_long_gate"`     // RSI must be at or above for longs
	RSIShortGate    float64       `json:"rsi_short_gate"`    // RSI must be at or below for shorts
	MaxVolumeRatio  float64       `json:"max_volume_ratio"`  // spike ceiling
	StochCrossBars  int           `json:"stoch_cross_bars"`  // recent-cross confirmation window
	TimeStop        time.Duration `json:"time_stop"`
}

// TrendParams are the per-bucket knobs of the trend-pullback strategy.
type TrendParams struct {
	SLATRx        float64       `json:"sl_atr_x"`
	TP1ATRx       float64       `json:"tp1_atr_x"`
	SwingLookback int           `json:"swing_lookback"`
	RecrossWindow int           `json:"recross_window"`
	TimeStop      time.Duration `json:"time_stop"`
}

// DefaultSweepParams returns the per-bucket sweep configuration.
func DefaultSweepParams() map[types.Bucket]SweepParams {
	base := SweepParams{
		SweepATRx:       0.5,
		SLATRx:          0.6,
		MinTailToBody:   0.6,
		SkipVolumeRatio: 3.0,
		DivergenceBars:  5,
		TriggerWindow:   5,
		TimeStop:        30 * time.Minute,
	}
	micros := base
	micros.SweepATRx = 0.8
	micros.SkipVolumeRatio = 3.5
	return map[types.Bucket]SweepParams{
		types.BucketMajors:  base,
		types.BucketMidCaps: base,
		types.BucketMicros:  micros,
	}
}

// DefaultVWAPParams returns the per-bucket mean-reversion configuration.
func DefaultVWAPParams() map[types.Bucket]VWAPParams {
	base := VWAPParams{
		SLATRx:         1.0,
		RSILongGate:    42,
		RSIShortGate:   58,
		MaxVolumeRatio: 2.0,
		StochCrossBars: 3,
		TimeStop:       45 * time.Minute,
	}
	return map[types.Bucket]VWAPParams{
		types.BucketMajors:  base,
		types.BucketMidCaps: base,
		types.BucketMicros:  base,
	}
}

// DefaultTrendParams returns the per-bucket trend-pullback configuration.
func DefaultTrendParams() map[types.Bucket]TrendParams {
	base := TrendParams{
		SLATRx:        1.2,
		TP1ATRx:       1.5,
		SwingLookback: 10,
		RecrossWindow: 3,
		TimeStop:      2 * time.Hour,
	}
	return map[types.Bucket]TrendParams{
		types.BucketMajors:  base,
		types.BucketMidCaps: base,
		types.BucketMicros:  base,
	}
}

// Take-profit ladder fractions shared by the reversion strategies: the
// majority exits at VWAP, a small residual rides to the far target.
const (
	tp1Fraction = 0.5
	tp2Fraction = 0.3
	tp3Fraction = 0.2

	// Trend pullback banks most of the position at TP1 and trails the rest.
	trendTP1Fraction = 0.6
)
