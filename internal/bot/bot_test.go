package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/quantara-labs/falcon/internal/errors"
	"github.com/quantara-labs/falcon/internal/exchange"
	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/strategy"
	"github.com/quantara-labs/falcon/pkg/config"
	"github.com/quantara-labs/falcon/pkg/types"
)

const testSymbol = "BTCUSDT"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Symbol:   testSymbol,
		Interval: "5",
		Live: config.LiveConfig{
			Symbols:  []string{testSymbol},
			LogDir:   t.TempDir(),
			StateDir: t.TempDir(),
			Testnet:  true,
			Demo:     true,
		},
	}
}

func testPaperExchange(t *testing.T) *exchange.PaperExchange {
	t.Helper()
	ex := exchange.NewPaperExchange("USDT", 10000)
	ex.SetInstrument(types.Instrument{Symbol: testSymbol, LotSize: 0.001, MinQty: 0.001})
	ex.SetSnapshot(types.MarketSnapshot{
		Symbol:         testSymbol,
		SpreadBps:      1.5,
		BidDepthUSD:    500000,
		AskDepthUSD:    500000,
		QuoteVolume24h: 900000000,
		Timestamp:      time.Now().UTC(),
	})
	ex.SetMark(testSymbol, 100)
	return ex
}

func testCandles(count int, price float64) []types.OHLCV {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.OHLCV, count)
	for i := range candles {
		candles[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func testSignal() *strategy.TradeSignal {
	return &strategy.TradeSignal{
		Strategy: "vwap_mr",
		Symbol:   testSymbol,
		Side:     strategy.SideLong,
		Entry:    100,
		Stop:     98,
		TPLevels: []strategy.TPLevel{
			{Price: 101, SizeFraction: 0.5},
			{Price: 102, SizeFraction: 0.5},
		},
		Confidence: 0.8,
		Reason:     "test",
		Timestamp:  time.Now().UTC(),
		TimeStop:   45 * time.Minute,
	}
}

func newTestBot(t *testing.T, ex exchange.Exchange) *Bot {
	t.Helper()
	b, err := NewBot(testConfig(t), ex)
	require.NoError(t, err)
	t.Cleanup(func() { b.logger.Close() })
	return b
}

func TestNewBotRequiresConfigAndExchange(t *testing.T) {
	_, err := NewBot(nil, testPaperExchange(t))
	assert.Error(t, err)

	_, err = NewBot(testConfig(t), nil)
	assert.Error(t, err)
}

func TestScanSymbolInsufficientData(t *testing.T) {
	ex := testPaperExchange(t)
	ex.SetCandles(testSymbol, testCandles(50, 100))
	b := newTestBot(t, ex)

	err := b.scanSymbol(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.Nil(t, b.openPosition(testSymbol))
}

func TestScanSymbolFlatMarketNoEntry(t *testing.T) {
	ex := testPaperExchange(t)
	ex.SetCandles(testSymbol, testCandles(400, 100))
	b := newTestBot(t, ex)

	err := b.scanSymbol(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.Nil(t, b.openPosition(testSymbol))
}

func TestExecuteEntryOpensPosition(t *testing.T) {
	ex := testPaperExchange(t)
	b := newTestBot(t, ex)

	err := b.executeEntry(context.Background(), testSignal(), types.BucketMajors)
	require.NoError(t, err)

	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)
	assert.Equal(t, position.StateOpen, pos.State())
	assert.Equal(t, strategy.SideLong, pos.Side)
	assert.InDelta(t, 100, pos.EntryPrice, 0.01)

	held, err := ex.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "Buy", held[0].Side)
	assert.InDelta(t, pos.Size, held[0].Size, 1e-9)
}

func TestExecuteEntrySizingRejected(t *testing.T) {
	ex := testPaperExchange(t)
	b := newTestBot(t, ex)

	sig := testSignal()
	sig.Stop = 60 // stop distance far beyond the guard limit
	err := b.executeEntry(context.Background(), sig, types.BucketMajors)
	require.NoError(t, err)
	assert.Nil(t, b.openPosition(testSymbol))

	held, err := ex.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestMonitorSymbolStopLossClosesPosition(t *testing.T) {
	ex := testPaperExchange(t)
	b := newTestBot(t, ex)

	require.NoError(t, b.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)

	// Last candle trades through the stop at 98.
	candles := testCandles(400, 100)
	last := &candles[len(candles)-1]
	last.Low = 97
	last.Close = 97.5
	ex.SetCandles(testSymbol, candles)
	ex.SetMark(testSymbol, 97.5)

	err := b.monitorSymbol(context.Background(), testSymbol, pos)
	require.NoError(t, err)

	assert.Nil(t, b.openPosition(testSymbol))
	held, err := ex.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestMonitorSymbolPartialTakeProfit(t *testing.T) {
	ex := testPaperExchange(t)
	b := newTestBot(t, ex)

	require.NoError(t, b.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)
	size := pos.Size

	// Last candle touches TP1 at 101 but not TP2.
	candles := testCandles(400, 100)
	last := &candles[len(candles)-1]
	last.High = 101.5
	last.Close = 100.8
	ex.SetCandles(testSymbol, candles)
	ex.SetMark(testSymbol, 100.8)

	err := b.monitorSymbol(context.Background(), testSymbol, pos)
	require.NoError(t, err)

	require.NotNil(t, b.openPosition(testSymbol))
	assert.Equal(t, position.StatePartiallyClosed, pos.State())
	assert.InDelta(t, size*0.5, pos.Remaining(), 1e-9)

	held, err := ex.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.InDelta(t, size*0.5, held[0].Size, 1e-9)
}

// flakyExchange wraps the paper exchange and fails a configured number
// of market orders.
type flakyExchange struct {
	*exchange.PaperExchange
	mu       sync.Mutex
	failures int
}

func (f *flakyExchange) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, qty float64) (*exchange.Fill, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return nil, coreerrors.New(coreerrors.CategoryExecutionTransient, "paper", "PlaceMarketOrder", "injected outage")
	}
	return f.PaperExchange.PlaceMarketOrder(ctx, symbol, side, qty)
}

func TestMonitorSymbolResendsFailedPartialExit(t *testing.T) {
	fx := &flakyExchange{PaperExchange: testPaperExchange(t)}
	b := newTestBot(t, fx)

	require.NoError(t, b.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)
	size := pos.Size

	candles := testCandles(400, 100)
	last := &candles[len(candles)-1]
	last.High = 101.5
	last.Close = 100.8
	fx.SetCandles(testSymbol, candles)
	fx.SetMark(testSymbol, 100.8)

	fx.failures = 1
	err := b.monitorSymbol(context.Background(), testSymbol, pos)
	require.Error(t, err)

	// booked locally but not yet executed on the exchange
	assert.Equal(t, position.StatePartiallyClosed, pos.State())
	held, err := fx.PaperExchange.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.InDelta(t, size, held[0].Size, 1e-9)

	// the next pass re-sends the reduce order before evaluating anything;
	// quiet candles above the breakeven stop keep the rest open
	fx.SetCandles(testSymbol, testCandles(400, 100.8))
	require.NoError(t, b.monitorSymbol(context.Background(), testSymbol, pos))

	held, err = fx.PaperExchange.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.InDelta(t, size*0.5, held[0].Size, 1e-9)
	assert.InDelta(t, size*0.5, pos.Remaining(), 1e-9)
}

func TestMonitorSymbolResendsFailedFullClose(t *testing.T) {
	fx := &flakyExchange{PaperExchange: testPaperExchange(t)}
	b := newTestBot(t, fx)

	require.NoError(t, b.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)
	size := pos.Size

	candles := testCandles(400, 100)
	last := &candles[len(candles)-1]
	last.Low = 97
	last.Close = 97.5
	fx.SetCandles(testSymbol, candles)
	fx.SetMark(testSymbol, 97.5)

	fx.failures = 1
	err := b.monitorSymbol(context.Background(), testSymbol, pos)
	require.Error(t, err)

	// the trade is held back until the close order is through, so the
	// slot stays occupied and the exchange position stays managed
	assert.Equal(t, position.StateClosed, pos.State())
	require.NotNil(t, b.openPosition(testSymbol))
	held, err := fx.PaperExchange.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.InDelta(t, size, held[0].Size, 1e-9)

	require.NoError(t, b.monitorSymbol(context.Background(), testSymbol, pos))

	assert.Nil(t, b.openPosition(testSymbol))
	held, err = fx.PaperExchange.GetPositions(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestMonitorSymbolExternalClose(t *testing.T) {
	ex := testPaperExchange(t)
	b := newTestBot(t, ex)

	require.NoError(t, b.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)

	// Position vanishes on the exchange side; the bot must fold it into
	// an external-close trade instead of trading against stale state.
	ex.ClearPosition(testSymbol)
	ex.SetMark(testSymbol, 100.4)

	err := b.monitorSymbol(context.Background(), testSymbol, pos)
	require.NoError(t, err)

	assert.Nil(t, b.openPosition(testSymbol))
	assert.Equal(t, position.StateClosed, pos.State())
}

func TestStartAndStop(t *testing.T) {
	ex := testPaperExchange(t)
	ex.SetCandles(testSymbol, testCandles(400, 100))

	cfg := testConfig(t)
	cfg.Live.MonitorInterval = 10 * time.Millisecond
	cfg.Live.ScanInterval = 10 * time.Millisecond

	b, err := NewBot(cfg, ex)
	require.NoError(t, err)

	require.NoError(t, b.Start())
	assert.Error(t, b.Start()) // double start

	time.Sleep(50 * time.Millisecond)
	b.Stop()
	assert.Nil(t, b.openPosition(testSymbol))
}

func TestRestorePositionsAcrossRestart(t *testing.T) {
	ex := testPaperExchange(t)
	cfg := testConfig(t)

	b1, err := NewBot(cfg, ex)
	require.NoError(t, err)
	require.NoError(t, b1.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	require.NotNil(t, b1.openPosition(testSymbol))
	b1.logger.Close()

	b2, err := NewBot(cfg, ex)
	require.NoError(t, err)
	defer b2.logger.Close()

	b2.restorePositions()
	restored := b2.openPosition(testSymbol)
	require.NotNil(t, restored)
	assert.Equal(t, strategy.SideLong, restored.Side)
	assert.InDelta(t, b1.openPosition(testSymbol).Remaining(), restored.Remaining(), 1e-9)
}

func TestEntryAndExitSides(t *testing.T) {
	assert.Equal(t, exchange.OrderBuy, entrySide(strategy.SideLong))
	assert.Equal(t, exchange.OrderSell, entrySide(strategy.SideShort))
	assert.Equal(t, exchange.OrderSell, exitSide(strategy.SideLong))
	assert.Equal(t, exchange.OrderBuy, exitSide(strategy.SideShort))
}

func TestSizedEntryUsesFillPrice(t *testing.T) {
	ex := testPaperExchange(t)
	ex.SetMark(testSymbol, 100.2)
	b := newTestBot(t, ex)

	require.NoError(t, b.executeEntry(context.Background(), testSignal(), types.BucketMajors))
	pos := b.openPosition(testSymbol)
	require.NotNil(t, pos)
	assert.InDelta(t, 100.2, pos.EntryPrice, 1e-9)
}
