package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/quantara-labs/falcon/pkg/types"
)

// Provider loads historical candle data from some source.
type Provider interface {
	// LoadData loads candles from the specified source.
	LoadData(source string) ([]types.OHLCV, error)

	// ValidateData checks the integrity of loaded candles.
	ValidateData(data []types.OHLCV) error

	// GetName returns the name of the provider.
	GetName() string
}

// CSVColumnMapping defines column positions and the timestamp layout for a
// CSV export format.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat matches the common "timestamp,open,high,low,close,volume"
// export layout.
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// CSVProvider implements Provider for CSV files.
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a CSV provider with the default format.
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a CSV provider with a custom format.
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// GetName returns the name of the provider.
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads candles from a CSV file. Malformed rows are logged and
// skipped rather than aborting the load.
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// skip header
	if _, err := reader.Read(); err != nil {
		return nil, err
	}

	var data []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %v", lineNum, err)
		}
		lineNum++

		if len(record) < p.format.MinColumns {
			log.Printf("insufficient columns at line %d (expected %d, got %d), skipping", lineNum, p.format.MinColumns, len(record))
			continue
		}

		candle, err := p.parseRow(record)
		if err != nil {
			log.Printf("invalid row at line %d, skipping: %v", lineNum, err)
			continue
		}
		data = append(data, candle)
	}

	return data, nil
}

func (p *CSVProvider) parseRow(record []string) (types.OHLCV, error) {
	var candle types.OHLCV

	timestamp, err := time.Parse(p.format.DateFormat, record[p.format.TimestampCol])
	if err != nil {
		return candle, fmt.Errorf("timestamp %q: %v", record[p.format.TimestampCol], err)
	}

	fields := []struct {
		name string
		col  int
		dst  *float64
	}{
		{"open", p.format.OpenCol, &candle.Open},
		{"high", p.format.HighCol, &candle.High},
		{"low", p.format.LowCol, &candle.Low},
		{"close", p.format.CloseCol, &candle.Close},
		{"volume", p.format.VolumeCol, &candle.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(record[f.col], 64)
		if err != nil {
			return candle, fmt.Errorf("%s %q: %v", f.name, record[f.col], err)
		}
		*f.dst = v
	}

	if candle.Open <= 0 || candle.High <= 0 || candle.Low <= 0 || candle.Close <= 0 {
		return candle, fmt.Errorf("non-positive price")
	}
	if candle.High < candle.Low || candle.High < candle.Open || candle.High < candle.Close {
		return candle, fmt.Errorf("high below another price")
	}
	if candle.Low > candle.Open || candle.Low > candle.Close {
		return candle, fmt.Errorf("low above another price")
	}

	candle.Timestamp = timestamp
	return candle, nil
}

// ValidateData checks price sanity and chronological order.
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}
	for i, candle := range data {
		if candle.Open <= 0 || candle.High <= 0 || candle.Low <= 0 || candle.Close <= 0 {
			return fmt.Errorf("invalid price data at index %d: prices must be positive", i)
		}
		if candle.High < candle.Low {
			return fmt.Errorf("invalid price data at index %d: high (%.4f) cannot be less than low (%.4f)",
				i, candle.High, candle.Low)
		}
		if candle.Volume < 0 {
			return fmt.Errorf("invalid volume at index %d: must be non-negative", i)
		}
		if i > 0 && !candle.Timestamp.After(data[i-1].Timestamp) {
			return fmt.Errorf("out-of-order timestamp at index %d", i)
		}
	}
	return nil
}

// FilterByDateRange returns the candles whose timestamps fall inside
// [start, end], inclusive on both ends.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	var filtered []types.OHLCV
	for _, candle := range data {
		if !candle.Timestamp.Before(start) && !candle.Timestamp.After(end) {
			filtered = append(filtered, candle)
		}
	}
	return filtered
}
