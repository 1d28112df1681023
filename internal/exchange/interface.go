package exchange

import (
	"context"

	"github.com/quantara-labs/falcon/pkg/types"
)

// OrderSide is the direction of an order.
type OrderSide int

const (
	OrderBuy OrderSide = iota
	OrderSell
)

func (s OrderSide) String() string {
	if s == OrderBuy {
		return "Buy"
	}
	return "Sell"
}

// Fill is the result of an executed order.
type Fill struct {
	OrderID string
	Price   float64
	Qty     float64
	Fee     float64
}

// PositionInfo is the exchange's view of an open position, used for
// reconciliation against local state.
type PositionInfo struct {
	Symbol     string
	Side       string // "Buy" or "Sell"
	Size       float64
	EntryPrice float64
}

// Exchange is the minimal execution surface the decision core requires:
// place an order and get a fill, and observe balances, positions, and
// market data. The wire protocol stays behind the adapter.
type Exchange interface {
	GetName() string

	// Market data
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
	GetTicker(ctx context.Context, symbol string) (*types.Ticker, error)
	GetMarketSnapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error)
	GetInstrument(ctx context.Context, symbol string) (*types.Instrument, error)

	// Account
	GetBalance(ctx context.Context, asset string) (*types.Balance, error)
	GetPositions(ctx context.Context, symbol string) ([]PositionInfo, error)

	// Trading
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (*Fill, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, qty, price float64) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
