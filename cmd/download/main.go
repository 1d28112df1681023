package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quantara-labs/falcon/internal/exchange"
	"github.com/quantara-labs/falcon/pkg/types"
)

// Public market-data endpoints need no credentials; the adapter signs
// requests only when keys are present.
func main() {
	var (
		symbols  = flag.String("symbols", "BTCUSDT", "Comma-separated symbols")
		interval = flag.String("interval", "5", "Kline interval (1, 3, 5, 15, 30, 60, 120, 240, D)")
		days     = flag.Int("days", 30, "How many days of history to fetch")
		outdir   = flag.String("outdir", "data", "Directory to write CSV files")
		testnet  = flag.Bool("testnet", false, "Use the public testnet")
	)
	flag.Parse()

	ex := exchange.NewBybitExchange(exchange.BybitConfig{Testnet: *testnet})
	ctx := context.Background()

	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		if err := downloadOne(ctx, ex, symbol, *interval, *days, *outdir); err != nil {
			log.Fatalf("Failed to download %s: %v", symbol, err)
		}
	}
}

func downloadOne(ctx context.Context, ex exchange.Exchange, symbol, interval string, days int, outdir string) error {
	barDur, err := intervalDuration(interval)
	if err != nil {
		return err
	}

	needed := int(time.Duration(days) * 24 * time.Hour / barDur)
	if needed > 1000 {
		// The kline endpoint caps a request at 1000 rows.
		fmt.Printf("Note: %d days of %s bars exceeds the 1000-candle request cap, truncating\n", days, interval)
		needed = 1000
	}
	fmt.Printf("Downloading %s %s: %d candles\n", symbol, interval, needed)

	candles, err := ex.GetKlines(ctx, symbol, interval, needed)
	if err != nil {
		return err
	}

	path := filepath.Join(outdir, fmt.Sprintf("%s_%s.csv", symbol, interval))
	if err := writeCSV(candles, path); err != nil {
		return err
	}

	fmt.Printf("Saved %d candles to %s", len(candles), path)
	if len(candles) > 0 {
		fmt.Printf(" (%s to %s)",
			candles[0].Timestamp.Format("2006-01-02 15:04"),
			candles[len(candles)-1].Timestamp.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	return nil
}

func intervalDuration(interval string) (time.Duration, error) {
	if interval == "D" {
		return 24 * time.Hour, nil
	}
	minutes, err := strconv.Atoi(interval)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func writeCSV(candles []types.OHLCV, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range candles {
		record := []string{
			c.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
