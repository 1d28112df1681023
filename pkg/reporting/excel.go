package reporting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/quantara-labs/falcon/internal/backtest"
)

// ExcelReporter writes backtest results as a multi-sheet workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// excelStyles holds the style IDs shared across sheets.
type excelStyles struct {
	Header  int
	Money   int
	Percent int
	Time    int
}

// WriteResultXLSX writes the result to an Excel workbook with Summary,
// Trades, and Equity Curve sheets.
func (r *ExcelReporter) WriteResultXLSX(result *backtest.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const tradesSheet = "Trades"
	const equitySheet = "Equity Curve"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	fx.NewSheet(tradesSheet)
	fx.NewSheet(equitySheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, result, styles); err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, tradesSheet, result, styles); err != nil {
		return err
	}
	if err := r.writeEquitySheet(fx, equitySheet, result, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.Header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
	})
	if err != nil {
		return styles, fmt.Errorf("failed to create header style: %w", err)
	}

	styles.Money, err = fx.NewStyle(&excelize.Style{NumFmt: 39}) // #,##0.00
	if err != nil {
		return styles, fmt.Errorf("failed to create money style: %w", err)
	}

	styles.Percent, err = fx.NewStyle(&excelize.Style{NumFmt: 10}) // 0.00%
	if err != nil {
		return styles, fmt.Errorf("failed to create percent style: %w", err)
	}

	timeFmt := "yyyy-mm-dd hh:mm"
	styles.Time, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &timeFmt})
	if err != nil {
		return styles, fmt.Errorf("failed to create time style: %w", err)
	}

	return styles, nil
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, result *backtest.Result, styles excelStyles) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Symbol", result.Symbol},
		{"Start", result.StartTime.Format("2006-01-02 15:04")},
		{"End", result.EndTime.Format("2006-01-02 15:04")},
		{"Initial Equity", result.InitialEquity},
		{"Final Equity", result.FinalEquity},
		{"Total Return", result.TotalReturn},
		{"Max Drawdown", result.MaxDrawdown},
		{"Sharpe Ratio", result.SharpeRatio},
		{"Profit Factor", finiteOrBlank(result.ProfitFactor)},
		{"Total Trades", result.TotalTrades},
		{"Winning Trades", result.WinningTrades},
		{"Losing Trades", result.LosingTrades},
		{"Win Rate %", result.WinRate},
		{"Avg MAE", result.AvgMAE},
		{"Avg MFE", result.AvgMFE},
		{"Total Fees", result.TotalFees},
		{"Signals Seen", result.SignalsSeen},
		{"Sizing Rejected", result.SizingRejected},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	fx.SetCellStyle(sheet, "A1", "B1", styles.Header)
	fx.SetCellStyle(sheet, "B7", "B8", styles.Percent)
	fx.SetColWidth(sheet, "A", "A", 18)
	fx.SetColWidth(sheet, "B", "B", 20)
	return nil
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, result *backtest.Result, styles excelStyles) error {
	header := []interface{}{
		"Entry Time", "Exit Time", "Symbol", "Strategy", "Side",
		"Entry Price", "Exit Price", "Size", "PnL", "Fees",
		"Exit Reason", "TP Hits", "MAE", "MFE", "Duration",
	}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, trade := range result.Trades {
		row := []interface{}{
			trade.EntryTime.Format("2006-01-02 15:04"),
			trade.ExitTime.Format("2006-01-02 15:04"),
			trade.Symbol,
			trade.Strategy,
			trade.Side.String(),
			trade.EntryPrice,
			trade.ExitPrice,
			trade.Size,
			trade.PnL,
			trade.Fees,
			string(trade.ExitReason),
			trade.TPHits,
			trade.MAE,
			trade.MFE,
			trade.Duration.String(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	fx.SetCellStyle(sheet, "A1", "O1", styles.Header)
	if n := len(result.Trades); n > 0 {
		fx.SetCellStyle(sheet, "F2", fmt.Sprintf("J%d", n+1), styles.Money)
		fx.SetCellStyle(sheet, "M2", fmt.Sprintf("N%d", n+1), styles.Percent)
	}
	fx.SetColWidth(sheet, "A", "B", 17)
	fx.SetColWidth(sheet, "C", "E", 12)
	return nil
}

func (r *ExcelReporter) writeEquitySheet(fx *excelize.File, sheet string, result *backtest.Result, styles excelStyles) error {
	header := []interface{}{"Time", "Equity"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, point := range result.EquityCurve {
		row := []interface{}{
			point.Time.Format("2006-01-02 15:04"),
			point.Equity,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	fx.SetCellStyle(sheet, "A1", "B1", styles.Header)
	if n := len(result.EquityCurve); n > 0 {
		fx.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", n+1), styles.Money)
	}
	fx.SetColWidth(sheet, "A", "A", 17)
	fx.SetColWidth(sheet, "B", "B", 14)
	return nil
}

// finiteOrBlank keeps +Inf profit factors out of the workbook, where
// they would render as an error value.
func finiteOrBlank(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	return v
}
