package backtest

import (
	"time"

	"github.com/quantara-labs/falcon/internal/position"
)

// EquityPoint is one sample of the equity curve, taken at every bar close.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Result aggregates one backtest run: the trade ledger, the per-bar equity
// curve, rejection counters, and the derived statistics.
type Result struct {
	Symbol        string    `json:"symbol"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	InitialEquity float64   `json:"initial_equity"`
	FinalEquity   float64   `json:"final_equity"`
	TotalReturn   float64   `json:"total_return"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	AvgMAE        float64 `json:"avg_mae"`
	AvgMFE        float64 `json:"avg_mfe"`
	TotalFees     float64 `json:"total_fees"`

	ExitReasons    map[position.ExitReason]int `json:"exit_reasons"`
	PnLByHour      [24]float64                 `json:"pnl_by_hour"`
	GateRejections map[string]int              `json:"gate_rejections"`
	SizingRejected int                         `json:"sizing_rejected"`
	SignalsSeen    int                         `json:"signals_seen"`

	Trades      []position.Trade `json:"trades"`
	EquityCurve []EquityPoint    `json:"equity_curve"`
}

func newResult(symbol string, initialEquity float64) *Result {
	return &Result{
		Symbol:         symbol,
		InitialEquity:  initialEquity,
		FinalEquity:    initialEquity,
		ExitReasons:    make(map[position.ExitReason]int),
		GateRejections: make(map[string]int),
	}
}

func (r *Result) recordTrade(t position.Trade) {
	r.Trades = append(r.Trades, t)
	r.ExitReasons[t.ExitReason]++
	net := t.PnL - t.Fees
	r.PnLByHour[t.EntryTime.UTC().Hour()] += net
	r.TotalFees += t.Fees
}
