package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	coreerrors "github.com/quantara-labs/falcon/internal/errors"
	"github.com/quantara-labs/falcon/internal/recovery"
	"github.com/quantara-labs/falcon/internal/safety"
	"github.com/quantara-labs/falcon/pkg/types"
)

const bybitCategory = "linear"

// BybitConfig configures the Bybit adapter.
type BybitConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool
}

// BybitExchange adapts the Bybit v5 unified trading API to the Exchange
// interface. All calls go through the retry policy, rate limiter, and
// circuit breaker.
type BybitExchange struct {
	client *bybit_api.Client
	retry  recovery.Policy
	guard  *safety.Guard
}

// NewBybitExchange creates a Bybit adapter. Demo selects the paper-trading
// environment, Testnet the public testnet; otherwise mainnet.
func NewBybitExchange(config BybitConfig) *BybitExchange {
	var baseURL string
	switch {
	case config.Demo:
		baseURL = "https://api-demo.bybit.com"
	case config.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	client := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &BybitExchange{
		client: client,
		retry:  recovery.DefaultPolicy(),
		guard:  safety.DefaultAPIGuard("bybit"),
	}
}

// call runs one API operation under the full protection stack: the rate
// limiter and circuit breaker inside, the retry policy outside, so a shed
// call is retried after backoff rather than surfaced immediately.
func (b *BybitExchange) call(ctx context.Context, fn func() error) error {
	return b.retry.Do(ctx, func() error {
		return b.guard.Do(ctx, fn)
	})
}

// GetName returns the adapter name.
func (b *BybitExchange) GetName() string {
	return "bybit"
}

// GetKlines fetches candles for a symbol. Bybit returns newest first; the
// result is reversed into chronological order.
func (b *BybitExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	params := map[string]interface{}{
		"category": bybitCategory,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	var candles []types.OHLCV
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "GetKlines")
		}

		var klineResult struct {
			List [][]string `json:"list"`
		}
		if err := decodeResult(result, &klineResult); err != nil {
			return err
		}

		candles = candles[:0]
		for i := len(klineResult.List) - 1; i >= 0; i-- {
			row := klineResult.List[i]
			if len(row) < 6 {
				continue
			}
			ms, _ := strconv.ParseInt(row[0], 10, 64)
			candles = append(candles, types.OHLCV{
				Timestamp: time.UnixMilli(ms).UTC(),
				Open:      parseFloat(row[1]),
				High:      parseFloat(row[2]),
				Low:       parseFloat(row[3]),
				Close:     parseFloat(row[4]),
				Volume:    parseFloat(row[5]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candles, nil
}

// tickerRow is the shared shape of Bybit's ticker list entries.
type tickerRow struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Bid1Price   string `json:"bid1Price"`
	Bid1Size    string `json:"bid1Size"`
	Ask1Price   string `json:"ask1Price"`
	Ask1Size    string `json:"ask1Size"`
	Turnover24h string `json:"turnover24h"`
	Volume24h   string `json:"volume24h"`
}

func (b *BybitExchange) fetchTicker(ctx context.Context, symbol string) (*tickerRow, error) {
	params := map[string]interface{}{
		"category": bybitCategory,
		"symbol":   symbol,
	}

	var row *tickerRow
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "GetMarketTickers")
		}

		var tickerResult struct {
			List []tickerRow `json:"list"`
		}
		if err := decodeResult(result, &tickerResult); err != nil {
			return err
		}
		if len(tickerResult.List) == 0 {
			return coreerrors.New(coreerrors.CategoryExecutionTransient, "bybit", "GetMarketTickers",
				fmt.Sprintf("no ticker data for %s", symbol)).WithRetryable(false)
		}
		row = &tickerResult.List[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetTicker returns the latest price for a symbol.
func (b *BybitExchange) GetTicker(ctx context.Context, symbol string) (*types.Ticker, error) {
	row, err := b.fetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &types.Ticker{
		Symbol:    row.Symbol,
		Price:     parseFloat(row.LastPrice),
		Volume:    parseFloat(row.Volume24h),
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetMarketSnapshot derives the liquidity picture the universe gates need
// from the ticker's top-of-book fields.
func (b *BybitExchange) GetMarketSnapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error) {
	row, err := b.fetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	bid := parseFloat(row.Bid1Price)
	ask := parseFloat(row.Ask1Price)
	snap := &types.MarketSnapshot{
		Symbol:         row.Symbol,
		QuoteVolume24h: parseFloat(row.Turnover24h),
		BidDepthUSD:    parseFloat(row.Bid1Size) * bid,
		AskDepthUSD:    parseFloat(row.Ask1Size) * ask,
		Timestamp:      time.Now().UTC(),
	}
	if mid := (bid + ask) / 2; mid > 0 {
		snap.SpreadBps = (ask - bid) / mid * 10000
	}
	return snap, nil
}

// GetInstrument fetches the lot-size constraints for a symbol.
func (b *BybitExchange) GetInstrument(ctx context.Context, symbol string) (*types.Instrument, error) {
	params := map[string]interface{}{
		"category": bybitCategory,
		"symbol":   symbol,
	}

	var instrument *types.Instrument
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "GetInstrumentInfo")
		}

		var infoResult struct {
			List []struct {
				Symbol        string `json:"symbol"`
				LotSizeFilter struct {
					QtyStep     string `json:"qtyStep"`
					MinOrderQty string `json:"minOrderQty"`
				} `json:"lotSizeFilter"`
			} `json:"list"`
		}
		if err := decodeResult(result, &infoResult); err != nil {
			return err
		}
		if len(infoResult.List) == 0 {
			return coreerrors.New(coreerrors.CategoryExecutionTransient, "bybit", "GetInstrumentInfo",
				fmt.Sprintf("no instrument info for %s", symbol)).WithRetryable(false)
		}
		info := infoResult.List[0]
		instrument = &types.Instrument{
			Symbol:  info.Symbol,
			LotSize: parseFloat(info.LotSizeFilter.QtyStep),
			MinQty:  parseFloat(info.LotSizeFilter.MinOrderQty),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instrument, nil
}

// GetBalance returns the wallet balance for one coin on the unified
// account.
func (b *BybitExchange) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        asset,
	}

	var balance *types.Balance
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "GetAccountWallet")
		}

		var walletResult struct {
			List []struct {
				Coin []struct {
					Coin          string `json:"coin"`
					WalletBalance string `json:"walletBalance"`
					Locked        string `json:"locked"`
				} `json:"coin"`
			} `json:"list"`
		}
		if err := decodeResult(result, &walletResult); err != nil {
			return err
		}
		for _, account := range walletResult.List {
			for _, coin := range account.Coin {
				if coin.Coin == asset {
					balance = &types.Balance{
						Asset:  coin.Coin,
						Free:   parseFloat(coin.WalletBalance) - parseFloat(coin.Locked),
						Locked: parseFloat(coin.Locked),
					}
					return nil
				}
			}
		}
		return coreerrors.New(coreerrors.CategoryExecutionTransient, "bybit", "GetAccountWallet",
			fmt.Sprintf("no balance for %s", asset)).WithRetryable(false)
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// GetPositions lists open positions for a symbol.
func (b *BybitExchange) GetPositions(ctx context.Context, symbol string) ([]PositionInfo, error) {
	params := map[string]interface{}{
		"category": bybitCategory,
		"symbol":   symbol,
	}

	var positions []PositionInfo
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "GetPositionList")
		}

		var posResult struct {
			List []struct {
				Symbol   string `json:"symbol"`
				Side     string `json:"side"`
				Size     string `json:"size"`
				AvgPrice string `json:"avgPrice"`
			} `json:"list"`
		}
		if err := decodeResult(result, &posResult); err != nil {
			return err
		}

		positions = positions[:0]
		for _, p := range posResult.List {
			size := parseFloat(p.Size)
			if size <= 0 {
				continue
			}
			positions = append(positions, PositionInfo{
				Symbol:     p.Symbol,
				Side:       p.Side,
				Size:       size,
				EntryPrice: parseFloat(p.AvgPrice),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// PlaceMarketOrder submits a market order and returns the average fill.
func (b *BybitExchange) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (*Fill, error) {
	params := map[string]interface{}{
		"category":  bybitCategory,
		"symbol":    symbol,
		"side":      side.String(),
		"orderType": "Market",
		"qty":       strconv.FormatFloat(qty, 'f', -1, 64),
	}

	var orderID string
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "PlaceOrder")
		}

		var orderResult struct {
			OrderID string `json:"orderId"`
		}
		if err := decodeResult(result, &orderResult); err != nil {
			return err
		}
		orderID = orderResult.OrderID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Market orders fill immediately; the position list carries the
	// average price.
	ticker, err := b.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Fill{OrderID: orderID, Price: ticker.Price, Qty: qty}, nil
}

// PlaceLimitOrder submits a post-only limit order and returns its ID.
func (b *BybitExchange) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, qty, price float64) (string, error) {
	params := map[string]interface{}{
		"category":    bybitCategory,
		"symbol":      symbol,
		"side":        side.String(),
		"orderType":   "Limit",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"price":       strconv.FormatFloat(price, 'f', -1, 64),
		"timeInForce": "PostOnly",
	}

	var orderID string
	err := b.call(ctx, func() error {
		result, err := b.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "PlaceOrder")
		}

		var orderResult struct {
			OrderID string `json:"orderId"`
		}
		if err := decodeResult(result, &orderResult); err != nil {
			return err
		}
		orderID = orderResult.OrderID
		return nil
	})
	return orderID, err
}

// CancelOrder cancels an open order by ID.
func (b *BybitExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": bybitCategory,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	return b.call(ctx, func() error {
		_, err := b.client.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
		if err != nil {
			return coreerrors.Categorize(err, "bybit", "CancelOrder")
		}
		return nil
	})
}

// decodeResult checks the API return code and unmarshals Result into dst.
func decodeResult(response interface{}, dst interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return coreerrors.New(coreerrors.CategoryExecutionTransient, "bybit", "decode", "invalid response type").WithRetryable(false)
	}
	if serverResp.RetCode != 0 {
		return coreerrors.Categorize(
			fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode),
			"bybit", "decode")
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryExecutionTransient, "bybit", "decode").WithRetryable(false)
	}
	if err := json.Unmarshal(resultBytes, dst); err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryExecutionTransient, "bybit", "decode").WithRetryable(false)
	}
	return nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
