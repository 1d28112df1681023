package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/strategy"
	"github.com/quantara-labs/falcon/pkg/types"
)

func testInstrument() types.Instrument {
	return types.Instrument{Symbol: "BTCUSDT", LotSize: 0.001, MinQty: 0.001}
}

func testSnapshot() types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol:         "BTCUSDT",
		SpreadBps:      1.0,
		BidDepthUSD:    500000,
		AskDepthUSD:    500000,
		QuoteVolume24h: 900000000,
	}
}

func generateCandles(count int) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := make([]types.OHLCV, count)
	for i := range data {
		base := 100.0 + float64(i%7-3)*0.1
		data[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      base,
			High:      base + 0.5,
			Low:       base - 0.5,
			Close:     base + 0.1,
			Volume:    1000 + float64(i%5)*100,
		}
	}
	return data
}

func TestRunEmptyData(t *testing.T) {
	engine := NewEngine(Config{})

	res := engine.Run(testInstrument(), testSnapshot(), nil)
	require.NotNil(t, res)
	assert.Equal(t, DefaultInitialEquity, res.InitialEquity)
	assert.Equal(t, DefaultInitialEquity, res.FinalEquity)
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.EquityCurve)
}

func TestRunRecordsEquityEveryBarAfterWarmup(t *testing.T) {
	engine := NewEngine(Config{InitialEquity: 5000})

	candles := generateCandles(300)
	res := engine.Run(testInstrument(), testSnapshot(), candles)

	assert.Len(t, res.EquityCurve, 300-DefaultWarmupBars)
	// curve timestamps are bar closes, strictly increasing
	for i := 1; i < len(res.EquityCurve); i++ {
		assert.True(t, res.EquityCurve[i].Time.After(res.EquityCurve[i-1].Time))
	}
}

func TestRunDeterminism(t *testing.T) {
	candles := generateCandles(500)

	first := NewEngine(Config{}).Run(testInstrument(), testSnapshot(), candles)
	second := NewEngine(Config{}).Run(testInstrument(), testSnapshot(), candles)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.SignalsSeen, second.SignalsSeen)
	assert.Equal(t, first.SizingRejected, second.SizingRejected)
}

func TestMakerFillLong(t *testing.T) {
	engine := NewEngine(Config{})
	sig := &strategy.TradeSignal{Side: strategy.SideLong, Entry: 100.0}

	bar := indicators.Bar{}
	bar.Low = 99.8
	bar.High = 100.6

	fill, slip, ok := engine.makerFill(sig, bar, 2.0)
	require.True(t, ok)
	assert.InDelta(t, 100.0*(1+0.0001), fill, 1e-9)
	assert.InDelta(t, 0.01, slip, 1e-9)

	// bar never trades down to the limit
	bar.Low = 100.2
	_, _, ok = engine.makerFill(sig, bar, 2.0)
	assert.False(t, ok)
}

func TestMakerFillShort(t *testing.T) {
	engine := NewEngine(Config{})
	sig := &strategy.TradeSignal{Side: strategy.SideShort, Entry: 100.0}

	bar := indicators.Bar{}
	bar.Low = 99.5
	bar.High = 100.3

	fill, _, ok := engine.makerFill(sig, bar, 2.0)
	require.True(t, ok)
	assert.InDelta(t, 100.0*(1-0.0001), fill, 1e-9)

	bar.High = 99.9
	_, _, ok = engine.makerFill(sig, bar, 2.0)
	assert.False(t, ok)
}

func TestTakerFillPaysSpreadPlusFloor(t *testing.T) {
	engine := NewEngine(Config{MinSlippageBps: 2.0})

	fill, slip := engine.takerFill(strategy.SideLong, 100.0, 3.0)
	assert.InDelta(t, 100.0*(1+0.0005), fill, 1e-9)
	assert.InDelta(t, 0.05, slip, 1e-9)

	fill, _ = engine.takerFill(strategy.SideShort, 100.0, 3.0)
	assert.InDelta(t, 100.0*(1-0.0005), fill, 1e-9)
}

func TestSettleFeeAttribution(t *testing.T) {
	engine := NewEngine(Config{MakerFeeBps: 2.0, TakerFeeBps: 5.0})
	res := newResult("BTCUSDT", 10000)

	entry := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	trade := &position.Trade{
		Symbol:     "BTCUSDT",
		Side:       strategy.SideLong,
		EntryTime:  entry,
		EntryPrice: 100,
		PnL:        10,
		ExitReason: position.ExitTimeStop,
		Exits: []position.PartialExit{
			{Price: 101, Qty: 5, Reason: position.ExitTP1},
			{Price: 100.5, Qty: 5, Reason: position.ExitTimeStop},
		},
	}

	engine.settle(res, trade, 2.0, 0.5)

	// entry 2.0 + maker 101*5*0.0002 + taker 100.5*5*0.0005
	expected := 2.0 + 101*5*0.0002 + 100.5*5*0.0005
	assert.InDelta(t, expected, trade.Fees, 1e-9)
	assert.Equal(t, 0.5, trade.Slippage)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, 1, res.ExitReasons[position.ExitTimeStop])
	assert.InDelta(t, 10-expected, res.PnLByHour[14], 1e-9)
}

func TestGateRejectionCounted(t *testing.T) {
	engine := NewEngine(Config{})

	snap := testSnapshot()
	snap.QuoteVolume24h = 100000 // fails the volume gate, classifies as micros
	res := engine.Run(testInstrument(), snap, generateCandles(400))

	// every signal that fired must have been gate-rejected, none sized
	total := 0
	for _, n := range res.GateRejections {
		total += n
	}
	assert.Equal(t, res.SignalsSeen, total)
	assert.Empty(t, res.Trades)
	assert.Zero(t, res.SizingRejected)
}

func TestRunNeverProducesNaNEquity(t *testing.T) {
	engine := NewEngine(Config{})

	res := engine.Run(testInstrument(), testSnapshot(), generateCandles(600))
	for _, p := range res.EquityCurve {
		assert.False(t, math.IsNaN(p.Equity))
	}
}
