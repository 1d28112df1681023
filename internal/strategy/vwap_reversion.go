package strategy

import (
	"fmt"
	"math"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/pkg/types"
)

// VWAPReversion fades band touches in a ranging market: price tags the
// lower/upper Bollinger or VWAP one-sigma band on contained volume, RSI
// sits on the permissive side of its midline gate, and a recent StochRSI
// cross through 20/80 confirms that momentum is already turning.
type VWAPReversion struct {
	params map[types.Bucket]VWAPParams
}

// NewVWAPReversion creates the mean-reversion generator. A nil parameter
// table uses the defaults.
func NewVWAPReversion(params map[types.Bucket]VWAPParams) *VWAPReversion {
	if params == nil {
		params = DefaultVWAPParams()
	}
	return &VWAPReversion{params: params}
}

// Name returns the strategy identifier used on signals and trades.
func (v *VWAPReversion) Name() string { return "vwap_mr" }

// Generate evaluates the touch/gate/confirmation pipeline at bar i.
func (v *VWAPReversion) Generate(bars []indicators.Bar, ctx Context, i int) *TradeSignal {
	p := v.params[ctx.Bucket]
	bar := bars[i]
	if bar.ATR <= 0 || bar.VWAP <= 0 || bar.RSI <= 0 || bar.BBMiddle <= 0 {
		return nil
	}
	if p.MaxVolumeRatio > 0 && bar.VolumeRatio >= p.MaxVolumeRatio {
		return nil
	}

	if sig := v.tryLong(bars, ctx, i, p); sig != nil {
		return sig
	}
	return v.tryShort(bars, ctx, i, p)
}

func (v *VWAPReversion) tryLong(bars []indicators.Bar, ctx Context, i int, p VWAPParams) *TradeSignal {
	bar := bars[i]

	touch := 0.0
	switch {
	case bar.Low <= bar.BBLower && bar.BBLower > 0:
		touch = bar.BBLower
	case bar.Low <= bar.VWAPLower && bar.VWAPLower > 0:
		touch = bar.VWAPLower
	default:
		return nil
	}
	if bar.RSI < p.RSILongGate {
		return nil
	}
	if !v.stochCrossedUp(bars, i, p.StochCrossBars) {
		return nil
	}

	entry := touch
	stop := bar.Low - p.SLATRx*bar.ATR
	sig := &TradeSignal{
		Strategy:   v.Name(),
		Symbol:     ctx.Symbol,
		Side:       SideLong,
		Entry:      entry,
		Stop:       stop,
		TPLevels:   reversionLadder(SideLong, entry, stop, bar.VWAP, bar.BBUpper, bar.BBLower, 1.2, 1.8),
		Confidence: reversionConfidence(bar.RSI, p.RSILongGate, SideLong),
		Reason:     fmt.Sprintf("lower-band touch %.8f with RSI %.1f and stoch cross", touch, bar.RSI),
		Timestamp:  bar.Timestamp,
		TimeStop:   p.TimeStop,
	}
	if sig.Validate() != nil {
		return nil
	}
	return sig
}

func (v *VWAPReversion) tryShort(bars []indicators.Bar, ctx Context, i int, p VWAPParams) *TradeSignal {
	bar := bars[i]

	touch := 0.0
	switch {
	case bar.High >= bar.BBUpper && bar.BBUpper > 0:
		touch = bar.BBUpper
	case bar.High >= bar.VWAPUpper && bar.VWAPUpper > 0:
		touch = bar.VWAPUpper
	default:
		return nil
	}
	if bar.RSI > p.RSIShortGate {
		return nil
	}
	if !v.stochCrossedDown(bars, i, p.StochCrossBars) {
		return nil
	}

	entry := touch
	stop := bar.High + p.SLATRx*bar.ATR
	sig := &TradeSignal{
		Strategy:   v.Name(),
		Symbol:     ctx.Symbol,
		Side:       SideShort,
		Entry:      entry,
		Stop:       stop,
		TPLevels:   reversionLadder(SideShort, entry, stop, bar.VWAP, bar.BBUpper, bar.BBLower, 1.2, 1.8),
		Confidence: reversionConfidence(bar.RSI, p.RSIShortGate, SideShort),
		Reason:     fmt.Sprintf("upper-band touch %.8f with RSI %.1f and stoch cross", touch, bar.RSI),
		Timestamp:  bar.Timestamp,
		TimeStop:   p.TimeStop,
	}
	if sig.Validate() != nil {
		return nil
	}
	return sig
}

// stochCrossedUp reports a StochRSI %K cross from below 20 to above it
// within the last window bars.
func (v *VWAPReversion) stochCrossedUp(bars []indicators.Bar, i, window int) bool {
	start := i - window
	if start < 1 {
		start = 1
	}
	for j := start; j <= i; j++ {
		if bars[j-1].StochRSIK < 20 && bars[j].StochRSIK >= 20 {
			return true
		}
	}
	return false
}

// stochCrossedDown reports a StochRSI %K cross from above 80 to below it
// within the last window bars.
func (v *VWAPReversion) stochCrossedDown(bars []indicators.Bar, i, window int) bool {
	start := i - window
	if start < 1 {
		start = 1
	}
	for j := start; j <= i; j++ {
		if bars[j-1].StochRSIK > 80 && bars[j].StochRSIK <= 80 {
			return true
		}
	}
	return false
}

// reversionConfidence grades a touch by how far RSI sits past its gate.
func reversionConfidence(rsi, gate float64, side Side) float64 {
	var margin float64
	if side == SideLong {
		margin = rsi - gate
	} else {
		margin = gate - rsi
	}
	conf := 0.55 + margin/100.0
	return math.Min(conf, 0.9)
}
