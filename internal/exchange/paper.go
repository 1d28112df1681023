package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	coreerrors "github.com/quantara-labs/falcon/internal/errors"
	"github.com/quantara-labs/falcon/pkg/types"
)

const paperTakerFeeRate = 0.00055

// PaperExchange is an in-memory Exchange for dry runs and tests. Market
// orders fill at the posted mark price and pay the taker fee; limit orders
// rest until cancelled.
type PaperExchange struct {
	mu sync.Mutex

	marks       map[string]float64
	candles     map[string][]types.OHLCV
	snapshots   map[string]types.MarketSnapshot
	instruments map[string]types.Instrument
	balance     types.Balance
	positions   map[string]PositionInfo
	openOrders  map[string]struct{}
	nextOrderID int
}

// NewPaperExchange creates a paper exchange with the given quote balance.
func NewPaperExchange(quoteAsset string, equity float64) *PaperExchange {
	return &PaperExchange{
		marks:       make(map[string]float64),
		candles:     make(map[string][]types.OHLCV),
		snapshots:   make(map[string]types.MarketSnapshot),
		instruments: make(map[string]types.Instrument),
		balance:     types.Balance{Asset: quoteAsset, Free: equity},
		positions:   make(map[string]PositionInfo),
		openOrders:  make(map[string]struct{}),
	}
}

// SetMark posts the current mark price for a symbol.
func (p *PaperExchange) SetMark(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[symbol] = price
}

// SetCandles seeds the candle history returned by GetKlines.
func (p *PaperExchange) SetCandles(symbol string, candles []types.OHLCV) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[symbol] = candles
}

// SetSnapshot seeds the market snapshot for a symbol.
func (p *PaperExchange) SetSnapshot(snap types.MarketSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[snap.Symbol] = snap
}

// SetInstrument seeds the contract constraints for a symbol.
func (p *PaperExchange) SetInstrument(instrument types.Instrument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instruments[instrument.Symbol] = instrument
}

// ClearPosition drops a tracked position, simulating an exchange-side
// close the core has not seen yet.
func (p *PaperExchange) ClearPosition(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, symbol)
}

// GetName returns the adapter name.
func (p *PaperExchange) GetName() string {
	return "paper"
}

// GetKlines returns the seeded candle history, truncated to limit.
func (p *PaperExchange) GetKlines(_ context.Context, symbol, _ string, limit int) ([]types.OHLCV, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candles, ok := p.candles[symbol]
	if !ok {
		return nil, coreerrors.NewInsufficientDataError("paper", "GetKlines", fmt.Sprintf("no candles for %s", symbol))
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]types.OHLCV, len(candles))
	copy(out, candles)
	return out, nil
}

// GetTicker returns the posted mark price.
func (p *PaperExchange) GetTicker(_ context.Context, symbol string) (*types.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.marks[symbol]
	if !ok {
		return nil, coreerrors.NewInsufficientDataError("paper", "GetTicker", fmt.Sprintf("no mark for %s", symbol))
	}
	return &types.Ticker{Symbol: symbol, Price: mark, Timestamp: time.Now().UTC()}, nil
}

// GetMarketSnapshot returns the seeded snapshot.
func (p *PaperExchange) GetMarketSnapshot(_ context.Context, symbol string) (*types.MarketSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, ok := p.snapshots[symbol]
	if !ok {
		return nil, coreerrors.NewInsufficientDataError("paper", "GetMarketSnapshot", fmt.Sprintf("no snapshot for %s", symbol))
	}
	return &snap, nil
}

// GetInstrument returns the seeded contract constraints.
func (p *PaperExchange) GetInstrument(_ context.Context, symbol string) (*types.Instrument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	instrument, ok := p.instruments[symbol]
	if !ok {
		return nil, coreerrors.NewInsufficientDataError("paper", "GetInstrument", fmt.Sprintf("no instrument for %s", symbol))
	}
	return &instrument, nil
}

// GetBalance returns the paper balance.
func (p *PaperExchange) GetBalance(_ context.Context, asset string) (*types.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if asset != p.balance.Asset {
		return nil, coreerrors.NewInsufficientDataError("paper", "GetBalance", fmt.Sprintf("no balance for %s", asset))
	}
	balance := p.balance
	return &balance, nil
}

// GetPositions returns tracked open positions for the symbol.
func (p *PaperExchange) GetPositions(_ context.Context, symbol string) ([]PositionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos, ok := p.positions[symbol]; ok {
		return []PositionInfo{pos}, nil
	}
	return nil, nil
}

// PlaceMarketOrder fills immediately at the mark price and pays the taker
// fee. Opposite-side orders reduce or flip the tracked position.
func (p *PaperExchange) PlaceMarketOrder(_ context.Context, symbol string, side OrderSide, qty float64) (*Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.marks[symbol]
	if !ok {
		return nil, coreerrors.NewInsufficientDataError("paper", "PlaceMarketOrder", fmt.Sprintf("no mark for %s", symbol))
	}
	if qty <= 0 {
		return nil, coreerrors.New(coreerrors.CategoryExecutionTransient, "paper", "PlaceMarketOrder", "non-positive qty").WithRetryable(false)
	}

	p.applyFill(symbol, side, qty, mark)

	p.nextOrderID++
	return &Fill{
		OrderID: fmt.Sprintf("paper-%d", p.nextOrderID),
		Price:   mark,
		Qty:     qty,
		Fee:     mark * qty * paperTakerFeeRate,
	}, nil
}

func (p *PaperExchange) applyFill(symbol string, side OrderSide, qty, price float64) {
	pos, exists := p.positions[symbol]
	if !exists {
		p.positions[symbol] = PositionInfo{Symbol: symbol, Side: side.String(), Size: qty, EntryPrice: price}
		return
	}
	if pos.Side == side.String() {
		total := pos.Size + qty
		pos.EntryPrice = (pos.EntryPrice*pos.Size + price*qty) / total
		pos.Size = total
		p.positions[symbol] = pos
		return
	}
	// opposite side reduces, closes, or flips
	switch {
	case qty < pos.Size:
		pos.Size -= qty
		p.positions[symbol] = pos
	case qty == pos.Size:
		delete(p.positions, symbol)
	default:
		p.positions[symbol] = PositionInfo{Symbol: symbol, Side: side.String(), Size: qty - pos.Size, EntryPrice: price}
	}
}

// PlaceLimitOrder records a resting order and returns its ID.
func (p *PaperExchange) PlaceLimitOrder(_ context.Context, symbol string, _ OrderSide, qty, price float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if qty <= 0 || price <= 0 {
		return "", coreerrors.New(coreerrors.CategoryExecutionTransient, "paper", "PlaceLimitOrder", "non-positive qty or price").WithRetryable(false)
	}
	p.nextOrderID++
	id := fmt.Sprintf("paper-%d", p.nextOrderID)
	p.openOrders[id] = struct{}{}
	_ = symbol
	return id, nil
}

// CancelOrder removes a resting order.
func (p *PaperExchange) CancelOrder(_ context.Context, _, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.openOrders[orderID]; !ok {
		return coreerrors.NewStateInconsistencyError("paper", "CancelOrder", fmt.Sprintf("unknown order %s", orderID))
	}
	delete(p.openOrders, orderID)
	return nil
}
