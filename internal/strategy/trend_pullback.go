package strategy

import (
	"fmt"
	"math"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/pkg/types"
)

// TrendPullback joins an established trend on a retrace: directional bias
// comes from price versus the 200-EMA combined with the VWAP slope sign,
// the entry waits for a pullback into the VWAP band with a fresh 9/21 EMA
// recross in the bias direction and RSI agreeing. TP1 banks the majority;
// the remainder trails behind Supertrend.
type TrendPullback struct {
	params map[types.Bucket]TrendParams
}

// NewTrendPullback creates the trend generator. A nil parameter table uses
// the defaults.
func NewTrendPullback(params map[types.Bucket]TrendParams) *TrendPullback {
	if params == nil {
		params = DefaultTrendParams()
	}
	return &TrendPullback{params: params}
}

// Name returns the strategy identifier used on signals and trades.
func (t *TrendPullback) Name() string { return "trend_pullback" }

// Generate evaluates the pullback setup at bar i.
func (t *TrendPullback) Generate(bars []indicators.Bar, ctx Context, i int) *TradeSignal {
	p := t.params[ctx.Bucket]
	bar := bars[i]
	if bar.ATR <= 0 || bar.VWAP <= 0 || bar.RSI <= 0 || bar.EMA200 <= 0 ||
		bar.EMA9 <= 0 || bar.EMA21 <= 0 {
		return nil
	}

	longBias := bar.Close > bar.EMA200 && bar.VWAPSlopeSigma > 0
	shortBias := bar.Close < bar.EMA200 && bar.VWAPSlopeSigma < 0

	switch {
	case longBias:
		return t.build(bars, ctx, i, p, SideLong)
	case shortBias:
		return t.build(bars, ctx, i, p, SideShort)
	default:
		return nil
	}
}

func (t *TrendPullback) build(bars []indicators.Bar, ctx Context, i int, p TrendParams, side Side) *TradeSignal {
	bar := bars[i]

	if side == SideLong {
		// pullback into the band from above, close holding over VWAP
		if bar.Low > bar.VWAPUpper || bar.Close < bar.VWAP {
			return nil
		}
		if bar.RSI <= 50 {
			return nil
		}
		if !t.recrossed(bars, i, p.RecrossWindow, SideLong) {
			return nil
		}
	} else {
		if bar.High < bar.VWAPLower || bar.Close > bar.VWAP {
			return nil
		}
		if bar.RSI >= 50 {
			return nil
		}
		if !t.recrossed(bars, i, p.RecrossWindow, SideShort) {
			return nil
		}
	}

	entry := bar.Close
	swing := t.swingExtreme(bars, i, p.SwingLookback, side)
	var stop, tp1 float64
	if side == SideLong {
		stop = swing - p.SLATRx*bar.ATR
		tp1 = entry + p.TP1ATRx*bar.ATR
	} else {
		stop = swing + p.SLATRx*bar.ATR
		tp1 = entry - p.TP1ATRx*bar.ATR
	}

	sig := &TradeSignal{
		Strategy: t.Name(),
		Symbol:   ctx.Symbol,
		Side:     side,
		Entry:    entry,
		Stop:     stop,
		// single TP rung; the residual trails via Supertrend after TP1
		TPLevels:   []TPLevel{{Price: tp1, SizeFraction: trendTP1Fraction}},
		Confidence: trendConfidence(bar, side),
		Reason: fmt.Sprintf("%s pullback to VWAP band with 9/21 recross, RSI %.1f",
			side, bar.RSI),
		Timestamp: bar.Timestamp,
		TimeStop:  p.TimeStop,
	}
	if sig.Validate() != nil {
		return nil
	}
	return sig
}

// recrossed reports a fast/slow EMA cross in the trade direction within
// the last window bars.
func (t *TrendPullback) recrossed(bars []indicators.Bar, i, window int, side Side) bool {
	start := i - window
	if start < 1 {
		start = 1
	}
	for j := start; j <= i; j++ {
		prev, cur := bars[j-1], bars[j]
		if prev.EMA9 <= 0 || prev.EMA21 <= 0 {
			continue
		}
		if side == SideLong && prev.EMA9 <= prev.EMA21 && cur.EMA9 > cur.EMA21 {
			return true
		}
		if side == SideShort && prev.EMA9 >= prev.EMA21 && cur.EMA9 < cur.EMA21 {
			return true
		}
	}
	return false
}

// swingExtreme returns the last swing low (long) or high (short) over the
// lookback, the anchor for the stop.
func (t *TrendPullback) swingExtreme(bars []indicators.Bar, i, lookback int, side Side) float64 {
	start := i - lookback
	if start < 0 {
		start = 0
	}
	if side == SideLong {
		low := math.Inf(1)
		for j := start; j <= i; j++ {
			low = math.Min(low, bars[j].Low)
		}
		return low
	}
	high := math.Inf(-1)
	for j := start; j <= i; j++ {
		high = math.Max(high, bars[j].High)
	}
	return high
}

// trendConfidence grades the setup by trend strength (ADX) and how far
// RSI leans with the bias.
func trendConfidence(bar indicators.Bar, side Side) float64 {
	lean := bar.RSI - 50
	if side == SideShort {
		lean = -lean
	}
	conf := 0.5 + bar.ADX/200.0 + lean/200.0
	return math.Min(conf, 0.9)
}
