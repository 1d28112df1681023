package position

import (
	"math"
	"time"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/strategy"
)

// State is the lifecycle stage of a position.
type State int

const (
	StateOpen State = iota
	StatePartiallyClosed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StatePartiallyClosed:
		return "PARTIALLY_CLOSED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ExitReason labels why a position closed.
type ExitReason string

const (
	ExitTP1           ExitReason = "tp1"
	ExitTP2           ExitReason = "tp2"
	ExitTP3           ExitReason = "tp3"
	ExitStopLoss      ExitReason = "sl"
	ExitTimeStop      ExitReason = "time"
	ExitTripwire      ExitReason = "tripwire"
	ExitEndOfData     ExitReason = "end_of_data"
	ExitExternalClose ExitReason = "external_close"
)

// tripwire parameters shared by all positions
const (
	resweepWindow     = 10 * time.Minute
	rangeTripwireATRx = 1.7
	remainingEpsilon  = 1e-9
)

// PartialExit is one fill that reduced the position.
type PartialExit struct {
	Time   time.Time
	Price  float64
	Qty    float64
	Reason ExitReason
}

// Trade is the immutable record of a closed position, appended to the
// trade ledger and never mutated afterwards.
type Trade struct {
	Symbol     string
	Strategy   string
	Side       strategy.Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64 // size-weighted average across all exits
	Size       float64
	ExitReason ExitReason
	Duration   time.Duration
	PnL        float64 // gross, before fees and slippage
	Fees       float64 // filled in by the caller that models fees
	Slippage   float64
	MAE        float64 // max adverse excursion, fraction of entry
	MFE        float64 // max favorable excursion, fraction of entry
	TPHits     int
	Exits      []PartialExit
}

// Position is the mutable state of one open trade. It is owned by exactly
// one orchestrator and mutated only through the named transitions below;
// remaining size is monotonically non-increasing and, once breakeven is
// reached, the stop may only move in the risk-reducing direction.
type Position struct {
	Symbol     string
	Strategy   string
	Side       strategy.Side
	EntryTime  time.Time
	EntryPrice float64
	Size       float64
	Notional   float64

	state            State
	stopPrice        float64
	tpLevels         []strategy.TPLevel
	tpHit            []bool
	remaining        float64
	movedToBreakeven bool
	timeStopDeadline time.Time
	sweepLevel       float64
	sweepExtreme     float64

	maxAdverse   float64 // price units
	maxFavorable float64

	exits []PartialExit
}

// Open creates a position from a validated signal, its sized result, and
// the actual fill. The time-stop deadline is fixed here and never moves.
func Open(sig *strategy.TradeSignal, sized risk.Result, fillPrice float64, fillTime time.Time) *Position {
	return &Position{
		Symbol:           sig.Symbol,
		Strategy:         sig.Strategy,
		Side:             sig.Side,
		EntryTime:        fillTime,
		EntryPrice:       fillPrice,
		Size:             sized.Contracts,
		Notional:         sized.Contracts * fillPrice,
		state:            StateOpen,
		stopPrice:        sig.Stop,
		tpLevels:         sig.TPLevels,
		tpHit:            make([]bool, len(sig.TPLevels)),
		remaining:        sized.Contracts,
		timeStopDeadline: fillTime.Add(sig.TimeStop),
		sweepLevel:       sig.SweepLevel,
		sweepExtreme:     sig.SweepExtreme,
	}
}

// State returns the current lifecycle stage.
func (p *Position) State() State { return p.state }

// StopPrice returns the current protective stop.
func (p *Position) StopPrice() float64 { return p.stopPrice }

// Remaining returns the unclosed contract quantity.
func (p *Position) Remaining() float64 { return p.remaining }

// MovedToBreakeven reports whether the first TP migrated the stop.
func (p *Position) MovedToBreakeven() bool { return p.movedToBreakeven }

// direction returns +1 for longs, -1 for shorts.
func (p *Position) direction() float64 {
	if p.Side == strategy.SideLong {
		return 1
	}
	return -1
}

// Evaluate runs the per-bar exit check while the position is open. The
// first matching condition wins: stop-loss, then the take-profit ladder,
// then the time stop, then the strategy tripwire. It returns a Trade when
// this bar closed the position and nil otherwise. Calling it on a closed
// position is a no-op.
func (p *Position) Evaluate(bar indicators.Bar) *Trade {
	if p.state == StateClosed {
		return nil
	}

	p.updateExcursions(bar)

	// 1. stop-loss
	if p.stopHit(bar) {
		return p.OnStopLoss(p.stopPrice, bar.Timestamp)
	}

	// 2. take-profit ladder, first unhit level whose trigger is met
	for i := range p.tpLevels {
		if p.tpHit[i] {
			continue
		}
		if !p.tpTouched(bar, p.tpLevels[i].Price) {
			break // levels are ordered away from entry; nothing further can fill
		}
		if t := p.OnTakeProfit(i, bar.Timestamp); t != nil {
			return t
		}
	}

	// 3. time stop
	if !bar.Timestamp.Before(p.timeStopDeadline) {
		return p.OnTimeStop(bar.Close, bar.Timestamp)
	}

	// 4. tripwire
	if p.tripwireHit(bar) {
		return p.OnTripwire(bar.Close, bar.Timestamp)
	}

	// trailing: once partially closed, ratchet the stop behind Supertrend
	if p.state == StatePartiallyClosed {
		p.trail(bar)
	}

	return nil
}

// OnStopLoss closes the full remaining size at the stop.
func (p *Position) OnStopLoss(price float64, t time.Time) *Trade {
	if p.state == StateClosed {
		return nil
	}
	return p.closeAll(price, t, ExitStopLoss)
}

// OnTakeProfit consumes level i's size fraction. On the first hit the
// stop migrates to entry and the position trails from then on. The
// returned Trade is non-nil only when the ladder consumed everything.
func (p *Position) OnTakeProfit(i int, t time.Time) *Trade {
	if p.state == StateClosed || i < 0 || i >= len(p.tpLevels) || p.tpHit[i] {
		return nil
	}
	level := p.tpLevels[i]
	p.tpHit[i] = true

	qty := level.SizeFraction * p.Size
	if qty > p.remaining {
		qty = p.remaining
	}
	p.remaining -= qty
	p.exits = append(p.exits, PartialExit{Time: t, Price: level.Price, Qty: qty, Reason: tpReason(i)})

	if !p.movedToBreakeven {
		p.moveStopTo(p.EntryPrice)
		p.movedToBreakeven = true
	}

	if p.remaining <= remainingEpsilon {
		p.remaining = 0
		p.state = StateClosed
		return p.buildTrade(t, tpReason(i))
	}
	p.state = StatePartiallyClosed
	return nil
}

// OnTimeStop closes the full remaining size at the given mark price.
func (p *Position) OnTimeStop(price float64, t time.Time) *Trade {
	if p.state == StateClosed {
		return nil
	}
	return p.closeAll(price, t, ExitTimeStop)
}

// OnTripwire forces an immediate full close regardless of PnL.
func (p *Position) OnTripwire(price float64, t time.Time) *Trade {
	if p.state == StateClosed {
		return nil
	}
	return p.closeAll(price, t, ExitTripwire)
}

// OnExternalClose reconciles a position the exchange reports as already
// closed: close locally at the given mark and move on.
func (p *Position) OnExternalClose(price float64, t time.Time) *Trade {
	if p.state == StateClosed {
		return nil
	}
	return p.closeAll(price, t, ExitExternalClose)
}

// OnEndOfData force-closes at the final bar of a historical run.
func (p *Position) OnEndOfData(price float64, t time.Time) *Trade {
	if p.state == StateClosed {
		return nil
	}
	return p.closeAll(price, t, ExitEndOfData)
}

// MarkPnL returns the position's gross profit at the given mark price,
// realized partial exits included.
func (p *Position) MarkPnL(mark float64) float64 {
	dir := p.direction()
	pnl := p.remaining * (mark - p.EntryPrice) * dir
	for _, e := range p.exits {
		pnl += (e.Price - p.EntryPrice) * e.Qty * dir
	}
	return pnl
}

// stopHit reports whether the bar crossed the stop against the position.
func (p *Position) stopHit(bar indicators.Bar) bool {
	if p.Side == strategy.SideLong {
		return bar.Low <= p.stopPrice
	}
	return bar.High >= p.stopPrice
}

// tpTouched reports whether the bar reached a take-profit price.
func (p *Position) tpTouched(bar indicators.Bar, price float64) bool {
	if p.Side == strategy.SideLong {
		return bar.High >= price
	}
	return bar.Low <= price
}

// tripwireHit applies the strategy-specific anomaly check: a re-sweep of
// the original wick extreme shortly after entry for sweep positions, or a
// wide bar running against the position for mean-reversion entries. The
// entry itself fills at or beyond the swept level, so only price pushing
// past the extreme again is anomalous. Undefined ATR disables the range
// tripwire for the bar.
func (p *Position) tripwireHit(bar indicators.Bar) bool {
	if p.sweepExtreme > 0 {
		if bar.Timestamp.Sub(p.EntryTime) > resweepWindow {
			return false
		}
		if p.Side == strategy.SideLong {
			return bar.Low < p.sweepExtreme
		}
		return bar.High > p.sweepExtreme
	}

	if p.Strategy != "vwap_mr" {
		return false
	}
	if bar.ATR <= 0 {
		return false
	}
	if bar.High-bar.Low < rangeTripwireATRx*bar.ATR {
		return false
	}
	// only a bar moving against the position trips
	if p.Side == strategy.SideLong {
		return bar.Close < bar.Open
	}
	return bar.Close > bar.Open
}

// trail ratchets the stop behind the Supertrend line, never loosening it.
func (p *Position) trail(bar indicators.Bar) {
	if bar.Supertrend <= 0 {
		return
	}
	if p.Side == strategy.SideLong && bar.SupertrendUp {
		p.moveStopTo(bar.Supertrend)
	}
	if p.Side == strategy.SideShort && !bar.SupertrendUp {
		p.moveStopTo(bar.Supertrend)
	}
}

// moveStopTo moves the stop only in the risk-reducing direction once
// breakeven has been reached.
func (p *Position) moveStopTo(price float64) {
	if !p.movedToBreakeven {
		p.stopPrice = price
		return
	}
	if p.Side == strategy.SideLong && price > p.stopPrice {
		p.stopPrice = price
	}
	if p.Side == strategy.SideShort && price < p.stopPrice {
		p.stopPrice = price
	}
}

// updateExcursions tracks the running MAE/MFE in price units.
func (p *Position) updateExcursions(bar indicators.Bar) {
	var adverse, favorable float64
	if p.Side == strategy.SideLong {
		adverse = p.EntryPrice - bar.Low
		favorable = bar.High - p.EntryPrice
	} else {
		adverse = bar.High - p.EntryPrice
		favorable = p.EntryPrice - bar.Low
	}
	p.maxAdverse = math.Max(p.maxAdverse, adverse)
	p.maxFavorable = math.Max(p.maxFavorable, favorable)
}

// closeAll liquidates the remaining size and seals the trade record.
func (p *Position) closeAll(price float64, t time.Time, reason ExitReason) *Trade {
	if p.remaining > 0 {
		p.exits = append(p.exits, PartialExit{Time: t, Price: price, Qty: p.remaining, Reason: reason})
		p.remaining = 0
	}
	p.state = StateClosed
	return p.buildTrade(t, reason)
}

// buildTrade snapshots the closed position into an immutable Trade.
func (p *Position) buildTrade(t time.Time, reason ExitReason) *Trade {
	var pnl, exitNotional, exitQty float64
	dir := p.direction()
	for _, e := range p.exits {
		pnl += (e.Price - p.EntryPrice) * e.Qty * dir
		exitNotional += e.Price * e.Qty
		exitQty += e.Qty
	}
	avgExit := p.EntryPrice
	if exitQty > 0 {
		avgExit = exitNotional / exitQty
	}

	tpHits := 0
	for _, hit := range p.tpHit {
		if hit {
			tpHits++
		}
	}

	exits := make([]PartialExit, len(p.exits))
	copy(exits, p.exits)

	return &Trade{
		Symbol:     p.Symbol,
		Strategy:   p.Strategy,
		Side:       p.Side,
		EntryTime:  p.EntryTime,
		ExitTime:   t,
		EntryPrice: p.EntryPrice,
		ExitPrice:  avgExit,
		Size:       p.Size,
		ExitReason: reason,
		Duration:   t.Sub(p.EntryTime),
		PnL:        pnl,
		MAE:        p.maxAdverse / p.EntryPrice,
		MFE:        p.maxFavorable / p.EntryPrice,
		TPHits:     tpHits,
		Exits:      exits,
	}
}

// tpReason maps a ladder index to its exit label.
func tpReason(i int) ExitReason {
	switch i {
	case 0:
		return ExitTP1
	case 1:
		return ExitTP2
	default:
		return ExitTP3
	}
}
