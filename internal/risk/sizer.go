package risk

import (
	"fmt"
	"math"

	"github.com/quantara-labs/falcon/internal/strategy"
	"github.com/quantara-labs/falcon/pkg/types"
)

// Default sizing parameters.
const (
	DefaultLeverage       = 25
	DefaultMarginFraction = 0.1

	// reduction ladder: full size first, then 0.9 down to 0.1
	reductionSteps = 9
	reductionStep  = 0.1

	// guards the lot flooring against float division artifacts
	sizeEpsilon = 1e-9
)

// mmrTier maps a notional ceiling to its maintenance-margin rate. A
// coarse approximation of exchange risk-limit tiers: bigger positions
// carry higher maintenance requirements.
type mmrTier struct {
	maxNotional float64
	rate        float64
}

var mmrTiers = []mmrTier{
	{maxNotional: 50_000, rate: 0.004},
	{maxNotional: 250_000, rate: 0.005},
	{maxNotional: 1_000_000, rate: 0.01},
	{maxNotional: 5_000_000, rate: 0.025},
	{maxNotional: math.Inf(1), rate: 0.05},
}

// MaintenanceMarginRate returns the tiered rate for a notional size.
func MaintenanceMarginRate(notional float64) float64 {
	for _, t := range mmrTiers {
		if notional < t.maxNotional {
			return t.rate
		}
	}
	return mmrTiers[len(mmrTiers)-1].rate
}

// GuardConfig holds the per-bucket liquidation-safety limits.
type GuardConfig struct {
	MaxStopPct         float64 `json:"max_stop_pct"`          // hard cap on entry-to-stop distance
	MinAbsBufferPct    float64 `json:"min_abs_buffer_pct"`    // stop-to-liquidation floor, of entry
	MinLiqDistFraction float64 `json:"min_liq_dist_fraction"` // stop-to-liq vs entry-to-liq
}

// DefaultGuards returns the per-bucket guard limits. Micros get a wider
// stop cap because their ATR-based stops are proportionally larger.
func DefaultGuards() map[types.Bucket]GuardConfig {
	return map[types.Bucket]GuardConfig{
		types.BucketMajors:  {MaxStopPct: 0.028, MinAbsBufferPct: 0.005, MinLiqDistFraction: 0.35},
		types.BucketMidCaps: {MaxStopPct: 0.032, MinAbsBufferPct: 0.005, MinLiqDistFraction: 0.35},
		types.BucketMicros:  {MaxStopPct: 0.040, MinAbsBufferPct: 0.006, MinLiqDistFraction: 0.35},
	}
}

// Request is one sizing request for a signal that already passed the
// universe gates.
type Request struct {
	Symbol     string
	Side       strategy.Side
	Entry      float64
	Stop       float64
	Equity     float64
	Instrument types.Instrument
	Bucket     types.Bucket
}

// Result is the sized position, or a rejection when Contracts is zero.
// A rejection is a normal outcome, not an error.
type Result struct {
	Contracts        float64
	Notional         float64
	Margin           float64
	Leverage         int
	LiquidationPrice float64
	StopPrice        float64
	Passed           bool
	ReductionFactor  float64 // (0,1]; 1 means full size passed
	Reason           string
}

// SizerConfig configures the risk sizer.
type SizerConfig struct {
	Leverage       int                          `json:"leverage"`
	MarginFraction float64                      `json:"margin_fraction_per_trade"`
	Guards         map[types.Bucket]GuardConfig `json:"guards"`
}

// Sizer converts signals into guarded position sizes. It is constructed
// once at startup and passed by reference; it holds no mutable state.
type Sizer struct {
	config SizerConfig
}

// NewSizer creates a sizer. Zero-valued config fields fall back to
// defaults; missing guard buckets use the default table.
func NewSizer(config SizerConfig) *Sizer {
	if config.Leverage <= 0 {
		config.Leverage = DefaultLeverage
	}
	if config.MarginFraction <= 0 {
		config.MarginFraction = DefaultMarginFraction
	}
	guards := DefaultGuards()
	for b, g := range config.Guards {
		guards[b] = g
	}
	config.Guards = guards
	return &Sizer{config: config}
}

// LiquidationPrice returns the estimated forced-close price for the given
// entry, side, leverage, and maintenance-margin rate.
func LiquidationPrice(side strategy.Side, entry float64, leverage int, mmr float64) float64 {
	invLev := 1.0 / float64(leverage)
	if side == strategy.SideLong {
		return entry * (1 - invLev + mmr)
	}
	return entry * (1 + invLev - mmr)
}

// Size computes a guarded position size for the request. The target
// notional is marginFraction x equity x leverage; if the liquidation
// guards fail at full size, the quantity is walked down in 0.1 steps,
// re-deriving the maintenance tier and liquidation price at each step,
// until a factor passes or the request is rejected with Contracts zero.
func (s *Sizer) Size(req Request) Result {
	reject := func(reason string) Result {
		return Result{Leverage: s.config.Leverage, StopPrice: req.Stop, Reason: reason}
	}

	if req.Entry <= 0 || req.Stop <= 0 || req.Equity <= 0 {
		return reject("entry, stop, and equity must be positive")
	}
	if req.Side == strategy.SideLong && req.Stop >= req.Entry {
		return reject("long stop must be below entry")
	}
	if req.Side == strategy.SideShort && req.Stop <= req.Entry {
		return reject("short stop must be above entry")
	}

	lot := req.Instrument.LotSize
	if lot <= 0 {
		lot = 1e-8
	}

	targetNotional := s.config.MarginFraction * req.Equity * float64(s.config.Leverage)
	baseQty := math.Floor(targetNotional/req.Entry/lot+sizeEpsilon) * lot
	if baseQty < req.Instrument.MinQty || baseQty <= 0 {
		return reject(fmt.Sprintf("base quantity %.8f below minimum %.8f", baseQty, req.Instrument.MinQty))
	}

	guards := s.config.Guards[req.Bucket]

	// Guard (a) is independent of size: bail out before the ladder.
	stopPct := math.Abs(req.Entry-req.Stop) / req.Entry
	if stopPct > guards.MaxStopPct {
		return reject(fmt.Sprintf("stop distance %.4f%% exceeds cap %.4f%%", stopPct*100, guards.MaxStopPct*100))
	}

	var lastReason string
	for step := 0; step <= reductionSteps; step++ {
		factor := 1.0 - float64(step)*reductionStep
		qty := math.Floor(baseQty*factor/lot+sizeEpsilon) * lot
		if qty < req.Instrument.MinQty || qty <= 0 {
			lastReason = "reduced quantity below instrument minimum"
			break
		}

		notional := qty * req.Entry
		mmr := MaintenanceMarginRate(notional)
		liq := LiquidationPrice(req.Side, req.Entry, s.config.Leverage, mmr)

		if ok, reason := s.checkLiqGuards(req, guards, liq); ok {
			return Result{
				Contracts:        qty,
				Notional:         notional,
				Margin:           notional / float64(s.config.Leverage),
				Leverage:         s.config.Leverage,
				LiquidationPrice: liq,
				StopPrice:        req.Stop,
				Passed:           true,
				ReductionFactor:  factor,
				Reason:           "ok",
			}
		} else {
			lastReason = reason
		}
	}

	return reject(fmt.Sprintf("no reduction factor passed liquidation guards: %s", lastReason))
}

// checkLiqGuards applies guards (b) and (c): the stop must sit safely
// between the entry and the liquidation price.
func (s *Sizer) checkLiqGuards(req Request, guards GuardConfig, liq float64) (bool, string) {
	// the stop must trigger before the exchange would liquidate
	if req.Side == strategy.SideLong && req.Stop <= liq {
		return false, fmt.Sprintf("stop %.8f at or below liquidation %.8f", req.Stop, liq)
	}
	if req.Side == strategy.SideShort && req.Stop >= liq {
		return false, fmt.Sprintf("stop %.8f at or above liquidation %.8f", req.Stop, liq)
	}

	stopToLiq := math.Abs(req.Stop - liq)
	if stopToLiq/req.Entry < guards.MinAbsBufferPct {
		return false, fmt.Sprintf("stop-to-liquidation buffer %.4f%% below floor %.4f%%",
			stopToLiq/req.Entry*100, guards.MinAbsBufferPct*100)
	}

	entryToLiq := math.Abs(req.Entry - liq)
	if stopToLiq < guards.MinLiqDistFraction*entryToLiq {
		return false, fmt.Sprintf("stop-to-liquidation %.8f below %.2f of entry-to-liquidation %.8f",
			stopToLiq, guards.MinLiqDistFraction, entryToLiq)
	}
	return true, ""
}
