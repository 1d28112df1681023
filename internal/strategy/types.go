package strategy

import (
	"fmt"
	"time"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/pkg/types"
)

// Side is the direction of a trade.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideLong {
		return "LONG"
	}
	return "SHORT"
}

// TPLevel is one rung of a take-profit ladder.
type TPLevel struct {
	Price        float64
	SizeFraction float64
}

// TradeSignal is the output of a signal generator: a fully specified
// entry with stop, take-profit ladder, and the metadata the position
// lifecycle needs for its tripwire checks.
type TradeSignal struct {
	Strategy   string
	Symbol     string
	Side       Side
	Entry      float64
	Stop       float64
	TPLevels   []TPLevel
	Confidence float64
	Reason     string
	Timestamp  time.Time

	// TimeStop is the strategy's holding window; the lifecycle turns it
	// into an absolute deadline at entry.
	TimeStop time.Duration

	// SweepLevel and SweepExtreme are set by the liquidity-sweep
	// generator: the swept level and the wick extreme beyond it. The
	// extreme drives the re-sweep tripwire, since the entry itself sits
	// at or beyond the level. Zero means not applicable.
	SweepLevel   float64
	SweepExtreme float64
}

// Validate checks the structural invariants of a signal: positive prices,
// stop on the losing side of entry, take-profit fractions summing to at
// most one, and prices strictly ordered away from entry in the profit
// direction.
func (s *TradeSignal) Validate() error {
	if s.Entry <= 0 || s.Stop <= 0 {
		return fmt.Errorf("signal %s: entry and stop must be positive", s.Strategy)
	}
	if s.Side == SideLong && s.Stop >= s.Entry {
		return fmt.Errorf("signal %s: long stop %.8f not below entry %.8f", s.Strategy, s.Stop, s.Entry)
	}
	if s.Side == SideShort && s.Stop <= s.Entry {
		return fmt.Errorf("signal %s: short stop %.8f not above entry %.8f", s.Strategy, s.Stop, s.Entry)
	}
	if len(s.TPLevels) == 0 {
		return fmt.Errorf("signal %s: no take-profit levels", s.Strategy)
	}

	totalFraction := 0.0
	prev := s.Entry
	for i, tp := range s.TPLevels {
		if tp.SizeFraction <= 0 {
			return fmt.Errorf("signal %s: tp%d has non-positive size fraction", s.Strategy, i+1)
		}
		totalFraction += tp.SizeFraction
		if s.Side == SideLong && tp.Price <= prev {
			return fmt.Errorf("signal %s: tp%d %.8f not above %.8f", s.Strategy, i+1, tp.Price, prev)
		}
		if s.Side == SideShort && tp.Price >= prev {
			return fmt.Errorf("signal %s: tp%d %.8f not below %.8f", s.Strategy, i+1, tp.Price, prev)
		}
		prev = tp.Price
	}
	if totalFraction > 1.0+1e-9 {
		return fmt.Errorf("signal %s: tp fractions sum to %.4f > 1", s.Strategy, totalFraction)
	}
	return nil
}

// Context carries the per-evaluation inputs shared by all generators.
type Context struct {
	Symbol string
	Bucket types.Bucket
}

// SignalGenerator is the contract every strategy implements: inspect the
// enriched bars at index i and either produce a signal or decline. A nil
// return is the normal no-setup outcome, never an error; undefined
// indicator inputs must also yield nil.
type SignalGenerator interface {
	Generate(bars []indicators.Bar, ctx Context, i int) *TradeSignal
	Name() string
}
