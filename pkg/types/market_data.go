package types

import "time"

// OHLCV is a single raw price bar.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Ticker is a point-in-time price snapshot for a symbol.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Balance is the free/locked balance of a single asset.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// MarketSnapshot carries the live liquidity picture of an instrument,
// used by the universe gates before any signal is acted on.
type MarketSnapshot struct {
	Symbol         string
	SpreadBps      float64 // best bid/ask spread in basis points
	BidDepthUSD    float64 // resting bid liquidity near top of book
	AskDepthUSD    float64 // resting ask liquidity near top of book
	QuoteVolume24h float64 // 24h quote-currency turnover
	Timestamp      time.Time
}

// Instrument describes the contract constraints of a tradable symbol.
type Instrument struct {
	Symbol  string
	LotSize float64 // quantity step
	MinQty  float64 // minimum order quantity
}
