package position

import (
	"time"

	"github.com/quantara-labs/falcon/internal/strategy"
)

// Snapshot is the JSON-serializable image of a position, complete enough
// to resume lifecycle management after a restart.
type Snapshot struct {
	Symbol       string             `json:"symbol"`
	Strategy     string             `json:"strategy"`
	Side         strategy.Side      `json:"side"`
	EntryTime    time.Time          `json:"entry_time"`
	EntryPrice   float64            `json:"entry_price"`
	Size         float64            `json:"size"`
	Notional     float64            `json:"notional"`
	State        State              `json:"state"`
	StopPrice    float64            `json:"stop_price"`
	TPLevels     []strategy.TPLevel `json:"tp_levels"`
	TPHit        []bool             `json:"tp_hit"`
	Remaining    float64            `json:"remaining"`
	Breakeven    bool               `json:"breakeven"`
	Deadline     time.Time          `json:"deadline"`
	SweepLevel   float64            `json:"sweep_level,omitempty"`
	SweepExtreme float64            `json:"sweep_extreme,omitempty"`

	MaxAdverse   float64       `json:"max_adverse"`
	MaxFavorable float64       `json:"max_favorable"`
	Exits        []PartialExit `json:"exits,omitempty"`
}

// Snapshot captures the full position state for persistence.
func (p *Position) Snapshot() Snapshot {
	return Snapshot{
		Symbol:       p.Symbol,
		Strategy:     p.Strategy,
		Side:         p.Side,
		EntryTime:    p.EntryTime,
		EntryPrice:   p.EntryPrice,
		Size:         p.Size,
		Notional:     p.Notional,
		State:        p.state,
		StopPrice:    p.stopPrice,
		TPLevels:     append([]strategy.TPLevel(nil), p.tpLevels...),
		TPHit:        append([]bool(nil), p.tpHit...),
		Remaining:    p.remaining,
		Breakeven:    p.movedToBreakeven,
		Deadline:     p.timeStopDeadline,
		SweepLevel:   p.sweepLevel,
		SweepExtreme: p.sweepExtreme,
		MaxAdverse:   p.maxAdverse,
		MaxFavorable: p.maxFavorable,
		Exits:        append([]PartialExit(nil), p.exits...),
	}
}

// FromSnapshot rebuilds a position from its persisted image.
func FromSnapshot(s Snapshot) *Position {
	tpHit := s.TPHit
	if len(tpHit) != len(s.TPLevels) {
		tpHit = make([]bool, len(s.TPLevels))
	}
	return &Position{
		Symbol:           s.Symbol,
		Strategy:         s.Strategy,
		Side:             s.Side,
		EntryTime:        s.EntryTime,
		EntryPrice:       s.EntryPrice,
		Size:             s.Size,
		Notional:         s.Notional,
		state:            s.State,
		stopPrice:        s.StopPrice,
		tpLevels:         append([]strategy.TPLevel(nil), s.TPLevels...),
		tpHit:            append([]bool(nil), tpHit...),
		remaining:        s.Remaining,
		movedToBreakeven: s.Breakeven,
		timeStopDeadline: s.Deadline,
		sweepLevel:       s.SweepLevel,
		sweepExtreme:     s.SweepExtreme,
		maxAdverse:       s.MaxAdverse,
		maxFavorable:     s.MaxFavorable,
		exits:            append([]PartialExit(nil), s.Exits...),
	}
}
