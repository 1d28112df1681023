package strategy

import (
	"fmt"
	"math"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/pkg/types"
)

// SweepReversion trades failed stop-runs through key levels in a ranging
// market: a wick pierces a prior-day or Asia-session extreme, closes back
// through it, momentum diverges, and price breaks structure back toward
// VWAP. Entries are limit-style at the swept level or the VWAP band edge,
// whichever is more conservative.
type SweepReversion struct {
	params map[types.Bucket]SweepParams
}

// NewSweepReversion creates the liquidity-sweep generator. A nil parameter
// table uses the defaults.
func NewSweepReversion(params map[types.Bucket]SweepParams) *SweepReversion {
	if params == nil {
		params = DefaultSweepParams()
	}
	return &SweepReversion{params: params}
}

// Name returns the strategy identifier used on signals and trades.
func (s *SweepReversion) Name() string { return "lsvr" }

// sweepEvent captures a qualifying sweep bar found in the lookback window.
type sweepEvent struct {
	index   int
	side    Side
	level   float64 // the swept key level
	extreme float64 // the wick extreme beyond the level
}

// Generate runs the three-stage pipeline at bar i: sweep detection and
// confirmation on a recent bar, then the structure-break trigger on the
// current bar. Returns nil whenever any stage fails or any required
// indicator is undefined.
func (s *SweepReversion) Generate(bars []indicators.Bar, ctx Context, i int) *TradeSignal {
	p := s.params[ctx.Bucket]
	bar := bars[i]
	if bar.ATR <= 0 || bar.VWAP <= 0 || bar.RSI <= 0 {
		return nil
	}

	sweep := s.findSweep(bars, i, p)
	if sweep == nil {
		return nil
	}
	if !s.triggered(bars, i, sweep) {
		return nil
	}

	var entry, stop float64
	if sweep.side == SideLong {
		entry = math.Min(sweep.level, bar.VWAPLower)
		stop = sweep.extreme - p.SLATRx*bar.ATR
	} else {
		entry = math.Max(sweep.level, bar.VWAPUpper)
		stop = sweep.extreme + p.SLATRx*bar.ATR
	}

	sig := &TradeSignal{
		Strategy:   s.Name(),
		Symbol:     ctx.Symbol,
		Side:       sweep.side,
		Entry:      entry,
		Stop:       stop,
		TPLevels:   reversionLadder(sweep.side, entry, stop, bar.VWAP, bar.VWAPUpper, bar.VWAPLower, 1.2, 1.9),
		Confidence: sweepConfidence(bars[sweep.index], sweep, bar.ATR),
		Reason: fmt.Sprintf("sweep of %.8f at bar %d, structure break back inside VWAP band",
			sweep.level, sweep.index),
		Timestamp:    bar.Timestamp,
		TimeStop:     p.TimeStop,
		SweepLevel:   sweep.level,
		SweepExtreme: sweep.extreme,
	}
	if sig.Validate() != nil {
		return nil
	}
	return sig
}

// findSweep scans the trigger window before i for a confirmed sweep bar.
// The most recent qualifying bar wins.
func (s *SweepReversion) findSweep(bars []indicators.Bar, i int, p SweepParams) *sweepEvent {
	start := i - p.TriggerWindow
	if start < 1 {
		start = 1
	}
	for j := i - 1; j >= start; j-- {
		if ev := s.detectSweep(bars, j, p); ev != nil {
			return ev
		}
	}
	return nil
}

// detectSweep checks bar j against every defined key level: the wick must
// pierce the level by at least SweepATRx ATRs with the close reclaiming it
// within the same bar, volume must not be a blow-off, the bar must have a
// dominant tail, and RSI must diverge from the price extreme.
func (s *SweepReversion) detectSweep(bars []indicators.Bar, j int, p SweepParams) *sweepEvent {
	bar := bars[j]
	if bar.ATR <= 0 {
		return nil
	}
	// At or above the skip ratio the sweep is informational flow, not a
	// stop-run worth fading.
	if bar.VolumeRatio >= p.SkipVolumeRatio && p.SkipVolumeRatio > 0 {
		return nil
	}

	minPierce := p.SweepATRx * bar.ATR
	highs := []float64{bar.PrevDayHigh, bar.AsiaHigh}
	lows := []float64{bar.PrevDayLow, bar.AsiaLow}

	for _, level := range highs {
		if level <= 0 {
			continue
		}
		if bar.High-level >= minPierce && bar.Close < level {
			if s.confirmed(bars, j, SideShort, p) {
				return &sweepEvent{index: j, side: SideShort, level: level, extreme: bar.High}
			}
		}
	}
	for _, level := range lows {
		if level <= 0 {
			continue
		}
		if level-bar.Low >= minPierce && bar.Close > level {
			if s.confirmed(bars, j, SideLong, p) {
				return &sweepEvent{index: j, side: SideLong, level: level, extreme: bar.Low}
			}
		}
	}
	return nil
}

// confirmed applies stage two to the sweep bar: tail-to-body ratio and an
// RSI divergence against the recent price extreme.
func (s *SweepReversion) confirmed(bars []indicators.Bar, j int, side Side, p SweepParams) bool {
	bar := bars[j]
	body := math.Abs(bar.Close - bar.Open)
	barRange := bar.High - bar.Low
	if barRange <= 0 {
		return false
	}
	// Floor the body so doji bars do not produce infinite ratios.
	if body < 0.1*barRange {
		body = 0.1 * barRange
	}

	var tail float64
	if side == SideShort {
		tail = bar.High - math.Max(bar.Open, bar.Close)
	} else {
		tail = math.Min(bar.Open, bar.Close) - bar.Low
	}
	if tail/body < p.MinTailToBody {
		return false
	}

	return s.rsiDiverges(bars, j, side, p.DivergenceBars)
}

// rsiDiverges reports whether bar j set a new price extreme over the
// lookback that RSI did not confirm.
func (s *SweepReversion) rsiDiverges(bars []indicators.Bar, j int, side Side, lookback int) bool {
	start := j - lookback
	if start < 0 {
		return false
	}
	if bars[j].RSI <= 0 {
		return false
	}

	extremeRSI := 0.0
	if side == SideLong {
		extremeRSI = 100.0
	}
	newExtreme := true
	for k := start; k < j; k++ {
		if bars[k].RSI <= 0 {
			return false
		}
		if side == SideShort {
			if bars[k].High > bars[j].High {
				newExtreme = false
			}
			extremeRSI = math.Max(extremeRSI, bars[k].RSI)
		} else {
			if bars[k].Low < bars[j].Low {
				newExtreme = false
			}
			extremeRSI = math.Min(extremeRSI, bars[k].RSI)
		}
	}
	if !newExtreme {
		return false
	}
	if side == SideShort {
		return bars[j].RSI < extremeRSI
	}
	return bars[j].RSI > extremeRSI
}

// triggered applies stage three on the current bar: a structure break in
// the sweep direction and a close back inside the VWAP one-sigma band.
func (s *SweepReversion) triggered(bars []indicators.Bar, i int, sweep *sweepEvent) bool {
	bar := bars[i]
	insideBand := bar.Close > bar.VWAPLower && bar.Close < bar.VWAPUpper
	if !insideBand {
		return false
	}
	sweepBar := bars[sweep.index]
	if sweep.side == SideShort {
		return bar.Close < sweepBar.Low
	}
	return bar.Close > sweepBar.High
}

// sweepConfidence grades the setup by how deep the wick ran relative to
// ATR; deeper stop-runs revert harder.
func sweepConfidence(sweepBar indicators.Bar, ev *sweepEvent, atr float64) float64 {
	if atr <= 0 {
		return 0.5
	}
	depth := math.Abs(ev.extreme-ev.level) / atr
	conf := 0.55 + 0.15*depth
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// reversionLadder builds the three-rung take-profit ladder shared by the
// reversion strategies: TP1 at VWAP with the majority of size, TP2 at the
// far band edge or 1.2R, TP3 a small residual at the outer R multiple.
// Ordering is repaired with R-based fallbacks so the ladder always walks
// away from entry.
func reversionLadder(side Side, entry, stop, vwap, bandUpper, bandLower float64, r2, r3 float64) []TPLevel {
	r := math.Abs(entry - stop)
	if r <= 0 {
		return nil
	}

	var tp1, tp2, tp3 float64
	if side == SideLong {
		tp1 = vwap
		tp2 = math.Max(bandUpper, entry+r2*r)
		tp3 = entry + r3*r
		if tp1 <= entry {
			tp1 = entry + 0.5*r
		}
		if tp2 <= tp1 {
			tp2 = tp1 + 0.5*r
		}
		if tp3 <= tp2 {
			tp3 = tp2 + 0.7*r
		}
	} else {
		tp1 = vwap
		tp2 = math.Min(bandLower, entry-r2*r)
		tp3 = entry - r3*r
		if tp1 >= entry {
			tp1 = entry - 0.5*r
		}
		if tp2 >= tp1 {
			tp2 = tp1 - 0.5*r
		}
		if tp3 >= tp2 {
			tp3 = tp2 - 0.7*r
		}
	}

	return []TPLevel{
		{Price: tp1, SizeFraction: tp1Fraction},
		{Price: tp2, SizeFraction: tp2Fraction},
		{Price: tp3, SizeFraction: tp3Fraction},
	}
}
