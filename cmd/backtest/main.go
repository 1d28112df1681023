package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/quantara-labs/falcon/internal/backtest"
	"github.com/quantara-labs/falcon/pkg/config"
	"github.com/quantara-labs/falcon/pkg/data"
	"github.com/quantara-labs/falcon/pkg/reporting"
	"github.com/quantara-labs/falcon/pkg/types"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., btc_5.json)")
		dataFile   = flag.String("data", "", "Candle CSV file (overrides config)")
		symbol     = flag.String("symbol", "", "Trading symbol (overrides config)")
		startDate  = flag.String("start", "", "Start date filter (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "End date filter (YYYY-MM-DD)")
		outputDir  = flag.String("output", "", "Output directory (default: results/<SYMBOL>_<interval>)")
		noExcel    = flag.Bool("no-excel", false, "Skip the Excel workbook")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("Please specify a config file with -config flag")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if cfg.DataFile == "" {
		log.Fatal("No data file: set data_file in the config or pass -data")
	}

	candles, err := data.NewCSVProvider().LoadData(cfg.DataFile)
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}
	candles, err = applyDateFilter(candles, *startDate, *endDate)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Loaded %d candles for %s from %s\n", len(candles), cfg.Symbol, cfg.DataFile)

	instrument := cfg.Instrument
	if instrument.Symbol == "" {
		instrument.Symbol = cfg.Symbol
	}

	engine := backtest.NewEngine(backtestConfig(cfg))
	result := engine.Run(instrument, offlineSnapshot(cfg.Symbol), candles)

	reporting.NewConsoleReporter().PrintAll(result)

	dir := *outputDir
	if dir == "" {
		dir = reporting.DefaultOutputDir(cfg.Symbol, cfg.Interval)
	}

	jsonPath := filepath.Join(dir, "result.json")
	if err := reporting.WriteResultJSON(result, jsonPath); err != nil {
		log.Fatalf("Failed to write JSON report: %v", err)
	}
	fmt.Printf("JSON report: %s\n", jsonPath)

	if !*noExcel {
		xlsxPath := filepath.Join(dir, "result.xlsx")
		if err := reporting.NewExcelReporter().WriteResultXLSX(result, xlsxPath); err != nil {
			log.Fatalf("Failed to write Excel report: %v", err)
		}
		fmt.Printf("Excel report: %s\n", xlsxPath)
	}
}

// backtestConfig merges the shared component sections into the engine
// config so one file drives both binaries.
func backtestConfig(cfg *config.Config) backtest.Config {
	bc := cfg.Backtest
	bc.Indicators = cfg.Indicators
	if len(cfg.Regime) > 0 {
		bc.Regime = cfg.Regime
	}
	bc.Sizer = cfg.Sizer
	bc.Gates = cfg.Gates
	return bc
}

// offlineSnapshot stands in for live market microstructure when replaying
// a CSV: a healthy major-bucket book that passes the default gates.
func offlineSnapshot(symbol string) types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol:         symbol,
		SpreadBps:      2.0,
		BidDepthUSD:    500000,
		AskDepthUSD:    500000,
		QuoteVolume24h: 600000000,
		Timestamp:      time.Now().UTC(),
	}
}

func applyDateFilter(candles []types.OHLCV, start, end string) ([]types.OHLCV, error) {
	if start == "" && end == "" {
		return candles, nil
	}
	var from time.Time
	to := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	var err error
	if start != "" {
		from, err = time.Parse("2006-01-02", start)
		if err != nil {
			return nil, fmt.Errorf("invalid -start date %q: %w", start, err)
		}
	}
	if end != "" {
		to, err = time.Parse("2006-01-02", end)
		if err != nil {
			return nil, fmt.Errorf("invalid -end date %q: %w", end, err)
		}
		to = to.Add(24 * time.Hour)
	}
	return data.FilterByDateRange(candles, from, to), nil
}
