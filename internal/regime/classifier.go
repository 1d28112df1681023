package regime

import (
	"math"

	"github.com/quantara-labs/falcon/pkg/types"
)

// RegimeType represents the market state driving strategy selection.
type RegimeType int

const (
	RegimeRange RegimeType = iota
	RegimeTrend
)

func (r RegimeType) String() string {
	switch r {
	case RegimeRange:
		return "RANGE"
	case RegimeTrend:
		return "TREND"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the per-bar regime classification together with the inputs
// that produced it. It is recomputed every bar and never persisted.
type Snapshot struct {
	Regime         RegimeType
	ADX            float64
	BBWidthPctile  float64
	VWAPSlopeSigma float64
	Bucket         types.Bucket
}

// Thresholds are the per-bucket range-detection limits. Majors get the
// strictest ADX ceiling because their trends are cleaner.
type Thresholds struct {
	MaxADX           float64 `json:"max_adx"`            // Range requires ADX strictly below
	MaxBBWidthPctile float64 `json:"max_bb_width_pctile"` // Range requires percentile at or below
	MaxVWAPSlope     float64 `json:"max_vwap_slope"`     // symmetric band on slope/sigma
}

// DefaultThresholds returns the standard per-bucket limits.
func DefaultThresholds() map[types.Bucket]Thresholds {
	return map[types.Bucket]Thresholds{
		types.BucketMajors:  {MaxADX: 20, MaxBBWidthPctile: 50, MaxVWAPSlope: 0.05},
		types.BucketMidCaps: {MaxADX: 23, MaxBBWidthPctile: 55, MaxVWAPSlope: 0.05},
		types.BucketMicros:  {MaxADX: 26, MaxBBWidthPctile: 60, MaxVWAPSlope: 0.06},
	}
}

// Classifier is a pure per-bar regime classifier. It holds only the
// threshold table; classification has no history and no hysteresis.
type Classifier struct {
	thresholds map[types.Bucket]Thresholds
}

// NewClassifier creates a classifier with the given per-bucket thresholds.
// Missing buckets fall back to the defaults.
func NewClassifier(thresholds map[types.Bucket]Thresholds) *Classifier {
	merged := DefaultThresholds()
	for b, t := range thresholds {
		merged[b] = t
	}
	return &Classifier{thresholds: merged}
}

// Classify returns the regime for one indicator snapshot. Range holds iff
// all three conditions do: ADX strictly below the bucket ceiling, band-width
// percentile at or below its ceiling, and the VWAP slope inside the
// symmetric band. Anything else, including an undefined (NaN) percentile,
// is Trend.
func (c *Classifier) Classify(bucket types.Bucket, adx, bbWidthPctile, vwapSlopeSigma float64) Snapshot {
	t := c.thresholds[bucket]

	isRange := adx < t.MaxADX &&
		bbWidthPctile <= t.MaxBBWidthPctile && // false for NaN
		math.Abs(vwapSlopeSigma) <= t.MaxVWAPSlope

	regime := RegimeTrend
	if isRange {
		regime = RegimeRange
	}

	return Snapshot{
		Regime:         regime,
		ADX:            adx,
		BBWidthPctile:  bbWidthPctile,
		VWAPSlopeSigma: vwapSlopeSigma,
		Bucket:         bucket,
	}
}
