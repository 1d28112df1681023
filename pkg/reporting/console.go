package reporting

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantara-labs/falcon/internal/backtest"
	"github.com/quantara-labs/falcon/internal/position"
)

// ConsoleReporter renders backtest results as terminal tables.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a console reporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// PrintSummary renders the headline performance table.
func (r *ConsoleReporter) PrintSummary(result *backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("BACKTEST RESULTS: %s", result.Symbol)
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s to %s",
			result.StartTime.Format("2006-01-02 15:04"),
			result.EndTime.Format("2006-01-02 15:04"))},
		{"Initial Equity", fmt.Sprintf("$%.2f", result.InitialEquity)},
		{"Final Equity", fmt.Sprintf("$%.2f", result.FinalEquity)},
		{"Total Return", fmt.Sprintf("%.2f%%", result.TotalReturn*100)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", result.MaxDrawdown*100)},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", result.SharpeRatio)},
		{"Profit Factor", formatProfitFactor(result.ProfitFactor)},
		{"Total Trades", result.TotalTrades},
		{"Win Rate", fmt.Sprintf("%.1f%%", result.WinRate)},
		{"Winning / Losing", fmt.Sprintf("%d / %d", result.WinningTrades, result.LosingTrades)},
		{"Avg MAE / MFE", fmt.Sprintf("%.2f%% / %.2f%%", result.AvgMAE*100, result.AvgMFE*100)},
		{"Total Fees", fmt.Sprintf("$%.2f", result.TotalFees)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintFunnel renders the signal funnel: how many signals the strategies
// produced and where the pipeline dropped them.
func (r *ConsoleReporter) PrintFunnel(result *backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("SIGNAL FUNNEL")
	t.SetStyle(table.StyleRounded)

	gateRejected := 0
	for _, n := range result.GateRejections {
		gateRejected += n
	}

	t.AppendRows([]table.Row{
		{"Signals Seen", result.SignalsSeen},
		{"Gate Rejected", gateRejected},
		{"Sizing Rejected", result.SizingRejected},
		{"Trades Taken", result.TotalTrades},
	})
	t.Render()

	if len(result.GateRejections) > 0 {
		g := table.NewWriter()
		g.SetOutputMirror(r.out)
		g.SetTitle("GATE REJECTIONS")
		g.SetStyle(table.StyleRounded)
		g.AppendHeader(table.Row{"Reason", "Count"})
		for _, reason := range sortedKeys(result.GateRejections) {
			g.AppendRow(table.Row{reason, result.GateRejections[reason]})
		}
		g.Render()
	}
	fmt.Fprintln(r.out)
}

// PrintExitBreakdown renders trade counts per exit reason.
func (r *ConsoleReporter) PrintExitBreakdown(result *backtest.Result) {
	if len(result.ExitReasons) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("EXIT REASONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Reason", "Count", "Share"})

	reasons := make([]string, 0, len(result.ExitReasons))
	for reason := range result.ExitReasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		n := result.ExitReasons[position.ExitReason(reason)]
		share := 0.0
		if result.TotalTrades > 0 {
			share = float64(n) / float64(result.TotalTrades) * 100
		}
		t.AppendRow(table.Row{reason, n, fmt.Sprintf("%.1f%%", share)})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintHourlyPnL renders net PnL bucketed by entry hour, skipping hours
// with no activity.
func (r *ConsoleReporter) PrintHourlyPnL(result *backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("PNL BY ENTRY HOUR (UTC)")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Hour", "Net PnL"})

	any := false
	for hour, pnl := range result.PnLByHour {
		if pnl == 0 {
			continue
		}
		any = true
		t.AppendRow(table.Row{fmt.Sprintf("%02d:00", hour), fmt.Sprintf("$%.2f", pnl)})
	}
	if !any {
		return
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, WidthMin: 18},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintAll renders every console section in order.
func (r *ConsoleReporter) PrintAll(result *backtest.Result) {
	r.PrintSummary(result)
	r.PrintFunnel(result)
	r.PrintExitBreakdown(result)
	r.PrintHourlyPnL(result)
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
