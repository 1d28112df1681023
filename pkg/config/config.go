package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quantara-labs/falcon/internal/backtest"
	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/internal/regime"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/universe"
	"github.com/quantara-labs/falcon/pkg/types"
)

// Validation bounds. A config outside these is a programmer error and
// fatal at startup.
const (
	MaxLeverage       = 100
	MaxMarginFraction = 0.5
	MaxFeeBps         = 100.0
)

// LiveConfig holds the live driver's loop and environment settings.
type LiveConfig struct {
	Symbols         []string      `json:"symbols"`
	QuoteAsset      string        `json:"quote_asset"`
	MonitorInterval time.Duration `json:"monitor_interval"`
	ScanInterval    time.Duration `json:"scan_interval"`
	MaxConcurrency  int           `json:"max_concurrency"`
	Testnet         bool          `json:"testnet"`
	Demo            bool          `json:"demo"`
	MetricsAddr     string        `json:"metrics_addr"`
	LogDir          string        `json:"log_dir"`
	StateDir        string        `json:"state_dir"`
}

// Config is the root configuration of both binaries.
type Config struct {
	Symbol   string `json:"symbol"`
	DataFile string `json:"data_file"`
	Interval string `json:"interval"`

	Instrument types.Instrument                   `json:"instrument"`
	Indicators indicators.EngineConfig            `json:"indicators"`
	Regime     map[types.Bucket]regime.Thresholds `json:"regime"`
	Sizer      risk.SizerConfig                   `json:"sizer"`
	Gates      universe.GateConfig                `json:"gates"`
	Backtest   backtest.Config                    `json:"backtest"`
	Live       LiveConfig                         `json:"live"`
}

// Load reads a JSON config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for programmer errors. Any failure
// here must stop startup before a trading loop begins; zero-valued fields
// that have component defaults are not errors.
func (c *Config) Validate() error {
	if c.Symbol == "" && len(c.Live.Symbols) == 0 {
		return fmt.Errorf("no symbol configured")
	}
	if c.Sizer.Leverage < 0 || c.Sizer.Leverage > MaxLeverage {
		return fmt.Errorf("leverage must be within [0, %d], got %d", MaxLeverage, c.Sizer.Leverage)
	}
	if c.Sizer.MarginFraction < 0 || c.Sizer.MarginFraction > MaxMarginFraction {
		return fmt.Errorf("margin fraction must be within [0, %.2f], got %.4f", MaxMarginFraction, c.Sizer.MarginFraction)
	}
	for bucket, g := range c.Sizer.Guards {
		if g.MaxStopPct <= 0 || g.MaxStopPct >= 1 {
			return fmt.Errorf("%s guard max_stop_pct must be within (0, 1), got %.4f", bucket, g.MaxStopPct)
		}
		if g.MinAbsBufferPct < 0 || g.MinLiqDistFraction < 0 || g.MinLiqDistFraction >= 1 {
			return fmt.Errorf("%s guard buffer thresholds out of range", bucket)
		}
	}
	for bucket, t := range c.Regime {
		if t.MaxADX <= 0 || t.MaxADX > 100 {
			return fmt.Errorf("%s regime max_adx must be within (0, 100], got %.2f", bucket, t.MaxADX)
		}
		if t.MaxBBWidthPctile <= 0 || t.MaxBBWidthPctile > 100 {
			return fmt.Errorf("%s regime max_bb_width_pctile must be within (0, 100], got %.2f", bucket, t.MaxBBWidthPctile)
		}
		if t.MaxVWAPSlope <= 0 {
			return fmt.Errorf("%s regime max_vwap_slope must be positive, got %.4f", bucket, t.MaxVWAPSlope)
		}
	}
	if c.Backtest.InitialEquity < 0 {
		return fmt.Errorf("initial equity must be non-negative, got %.2f", c.Backtest.InitialEquity)
	}
	for name, bps := range map[string]float64{
		"maker_fee_bps":    c.Backtest.MakerFeeBps,
		"taker_fee_bps":    c.Backtest.TakerFeeBps,
		"min_slippage_bps": c.Backtest.MinSlippageBps,
	} {
		if bps < 0 || bps > MaxFeeBps {
			return fmt.Errorf("%s must be within [0, %.0f], got %.2f", name, MaxFeeBps, bps)
		}
	}
	if c.Instrument.LotSize < 0 || c.Instrument.MinQty < 0 {
		return fmt.Errorf("instrument lot_size and min_qty must be non-negative")
	}
	if c.Live.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be non-negative, got %d", c.Live.MaxConcurrency)
	}
	return nil
}

// Credentials are read from the environment, never from config files.
type Credentials struct {
	APIKey    string
	APISecret string
}

// LoadCredentials reads exchange credentials from the environment. The
// cmd wiring loads a .env file first via godotenv.
func LoadCredentials() (Credentials, error) {
	creds := Credentials{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return creds, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
	}
	return creds, nil
}
