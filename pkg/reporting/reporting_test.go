package reporting

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantara-labs/falcon/internal/backtest"
	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/strategy"
)

func sampleResult() *backtest.Result {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	res := &backtest.Result{
		Symbol:        "BTCUSDT",
		StartTime:     start,
		EndTime:       end,
		InitialEquity: 10000,
		FinalEquity:   11200,
		TotalReturn:   0.12,
		TotalTrades:   2,
		WinningTrades: 1,
		LosingTrades:  1,
		WinRate:       50,
		ProfitFactor:  2.4,
		SharpeRatio:   1.8,
		MaxDrawdown:   0.05,
		AvgMAE:        0.004,
		AvgMFE:        0.011,
		TotalFees:     14.5,
		ExitReasons: map[position.ExitReason]int{
			position.ExitTP2:      1,
			position.ExitStopLoss: 1,
		},
		GateRejections: map[string]int{"spread 12.00 bps above limit 8.00": 3},
		SizingRejected: 1,
		SignalsSeen:    6,
		Trades: []position.Trade{
			{
				Symbol:     "BTCUSDT",
				Strategy:   "vwap_mr",
				Side:       strategy.SideLong,
				EntryTime:  start.Add(2 * time.Hour),
				ExitTime:   start.Add(3 * time.Hour),
				EntryPrice: 100,
				ExitPrice:  101.5,
				Size:       10,
				ExitReason: position.ExitTP2,
				Duration:   time.Hour,
				PnL:        15,
				Fees:       2.1,
				TPHits:     2,
				MAE:        0.003,
				MFE:        0.016,
			},
			{
				Symbol:     "BTCUSDT",
				Strategy:   "trend_pullback",
				Side:       strategy.SideShort,
				EntryTime:  start.Add(26 * time.Hour),
				ExitTime:   start.Add(27 * time.Hour),
				EntryPrice: 102,
				ExitPrice:  103,
				Size:       5,
				ExitReason: position.ExitStopLoss,
				Duration:   time.Hour,
				PnL:        -5,
				Fees:       1.4,
				MAE:        0.01,
				MFE:        0.002,
			},
		},
		EquityCurve: []backtest.EquityPoint{
			{Time: start, Equity: 10000},
			{Time: start.Add(time.Hour), Equity: 10015},
			{Time: end, Equity: 11200},
		},
	}
	res.PnLByHour[2] = 12.9
	return res
}

func TestConsoleReporterRendersAllSections(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)
	r.PrintAll(sampleResult())

	out := buf.String()
	assert.Contains(t, out, "BACKTEST RESULTS: BTCUSDT")
	assert.Contains(t, out, "SIGNAL FUNNEL")
	assert.Contains(t, out, "EXIT REASONS")
	assert.Contains(t, out, "PNL BY ENTRY HOUR")
	assert.Contains(t, out, "$10000.00")
	assert.Contains(t, out, "12.00%")
}

func TestConsoleReporterInfiniteProfitFactor(t *testing.T) {
	res := sampleResult()
	res.ProfitFactor = math.Inf(1)

	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintSummary(res)
	assert.Contains(t, buf.String(), "inf")
}

func TestWriteResultJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	require.NoError(t, WriteResultJSON(sampleResult(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded backtest.Result
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "BTCUSDT", decoded.Symbol)
	assert.InDelta(t, 0.12, decoded.TotalReturn, 1e-12)
	assert.Len(t, decoded.Trades, 2)
	assert.Equal(t, 1, decoded.ExitReasons[position.ExitStopLoss])
}

func TestWriteResultXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.xlsx")
	require.NoError(t, NewExcelReporter().WriteResultXLSX(sampleResult(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Summary", "Trades", "Equity Curve"}, fx.GetSheetList())

	symbol, err := fx.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)

	side, err := fx.GetCellValue("Trades", "E2")
	require.NoError(t, err)
	assert.Equal(t, "LONG", side)

	rows, err := fx.GetRows("Equity Curve")
	require.NoError(t, err)
	assert.Len(t, rows, 4) // header + 3 points
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_5"), DefaultOutputDir("btcusdt", "5"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
}
