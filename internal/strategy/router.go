package strategy

import (
	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/internal/regime"
)

// Router maps the current regime to its generator order and returns the
// first signal produced. Range bars try liquidity-sweep reversion first
// and VWAP mean-reversion second; Trend bars try the pullback only. The
// generators are mutually exclusive per bar by construction.
type Router struct {
	rangeGenerators []SignalGenerator
	trendGenerators []SignalGenerator
}

// NewRouter wires the standard generator set. Nil generators are allowed
// and skipped, which lets tests isolate a single strategy.
func NewRouter(sweep, vwap, trend SignalGenerator) *Router {
	r := &Router{}
	if sweep != nil {
		r.rangeGenerators = append(r.rangeGenerators, sweep)
	}
	if vwap != nil {
		r.rangeGenerators = append(r.rangeGenerators, vwap)
	}
	if trend != nil {
		r.trendGenerators = append(r.trendGenerators, trend)
	}
	return r
}

// NewDefaultRouter wires all three generators with default parameters.
func NewDefaultRouter() *Router {
	return NewRouter(NewSweepReversion(nil), NewVWAPReversion(nil), NewTrendPullback(nil))
}

// Evaluate runs the generator chain for the bar's regime and returns the
// first non-nil signal, or nil when nothing sets up.
func (r *Router) Evaluate(bars []indicators.Bar, snap regime.Snapshot, ctx Context, i int) *TradeSignal {
	var chain []SignalGenerator
	if snap.Regime == regime.RegimeRange {
		chain = r.rangeGenerators
	} else {
		chain = r.trendGenerators
	}
	for _, gen := range chain {
		if sig := gen.Generate(bars, ctx, i); sig != nil {
			return sig
		}
	}
	return nil
}
