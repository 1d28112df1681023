package indicators

import (
	"math"

	"github.com/quantara-labs/falcon/pkg/types"
)

// Default indicator parameters. All of them can be overridden through
// EngineConfig; these mirror the live configuration defaults.
const (
	DefaultBBPeriod         = 20
	DefaultBBStdDev         = 2.0
	DefaultBBWidthLookback  = 120
	DefaultATRPeriod        = 14
	DefaultADXPeriod        = 14
	DefaultRSIPeriod        = 14
	DefaultStochRSIPeriod   = 14
	DefaultStochRSISmoothK  = 3
	DefaultStochRSISmoothD  = 3
	DefaultVWAPSlopeLookback = 20
	DefaultVolumeRatioPeriod = 20
	DefaultSupertrendPeriod  = 10
	DefaultSupertrendMult    = 3.0
)

// EMA ladder periods attached to every bar.
var DefaultEMAPeriods = [4]int{9, 21, 50, 200}

// Bar is a raw OHLCV bar enriched with every derived series the decision
// core consumes. Fields that cannot be computed yet (not enough history)
// are left at zero, except BBWidthPctile which is NaN so that threshold
// comparisons fail closed.
type Bar struct {
	types.OHLCV

	// Session VWAP, reset at 00:00 UTC.
	VWAP           float64
	VWAPUpper      float64 // VWAP + 1 running sigma
	VWAPLower      float64 // VWAP - 1 running sigma
	VWAPSlopeSigma float64 // (VWAP - VWAP[20 bars ago]) / sigma

	// Bollinger(20, 2) and the rolling percentile of band width.
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	BBWidthPctile float64

	// Wilder-smoothed volatility and trend strength.
	ATR float64
	ADX float64

	// Momentum oscillators.
	RSI       float64
	StochRSIK float64
	StochRSID float64

	// EMA ladder.
	EMA9   float64
	EMA21  float64
	EMA50  float64
	EMA200 float64

	// Supertrend trailing reference.
	Supertrend   float64
	SupertrendUp bool

	// Volume relative to its 20-bar average.
	VolumeRatio float64

	// Key price levels, derived from already-seen bars only.
	PrevDayHigh float64
	PrevDayLow  float64
	AsiaHigh    float64
	AsiaLow     float64
}

// EngineConfig holds the tunable periods of the indicator engine.
type EngineConfig struct {
	BBPeriod          int     `json:"bb_period"`
	BBStdDev          float64 `json:"bb_std_dev"`
	BBWidthLookback   int     `json:"bb_width_lookback"`
	ATRPeriod         int     `json:"atr_period"`
	ADXPeriod         int     `json:"adx_period"`
	RSIPeriod         int     `json:"rsi_period"`
	StochRSIPeriod    int     `json:"stoch_rsi_period"`
	StochRSISmoothK   int     `json:"stoch_rsi_smooth_k"`
	StochRSISmoothD   int     `json:"stoch_rsi_smooth_d"`
	VWAPSlopeLookback int     `json:"vwap_slope_lookback"`
	VolumeRatioPeriod int     `json:"volume_ratio_period"`
	SupertrendPeriod  int     `json:"supertrend_period"`
	SupertrendMult    float64 `json:"supertrend_multiplier"`
}

// DefaultEngineConfig returns the standard parameter set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BBPeriod:          DefaultBBPeriod,
		BBStdDev:          DefaultBBStdDev,
		BBWidthLookback:   DefaultBBWidthLookback,
		ATRPeriod:         DefaultATRPeriod,
		ADXPeriod:         DefaultADXPeriod,
		RSIPeriod:         DefaultRSIPeriod,
		StochRSIPeriod:    DefaultStochRSIPeriod,
		StochRSISmoothK:   DefaultStochRSISmoothK,
		StochRSISmoothD:   DefaultStochRSISmoothD,
		VWAPSlopeLookback: DefaultVWAPSlopeLookback,
		VolumeRatioPeriod: DefaultVolumeRatioPeriod,
		SupertrendPeriod:  DefaultSupertrendPeriod,
		SupertrendMult:    DefaultSupertrendMult,
	}
}

// Engine computes the full derived-series set for one instrument at one
// resolution. It holds no per-run state; Enrich is a pure transformation
// of its input.
type Engine struct {
	config EngineConfig
}

// NewEngine creates an indicator engine with the given configuration.
// Zero-valued fields fall back to defaults.
func NewEngine(config EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if config.BBPeriod <= 0 {
		config.BBPeriod = def.BBPeriod
	}
	if config.BBStdDev <= 0 {
		config.BBStdDev = def.BBStdDev
	}
	if config.BBWidthLookback <= 0 {
		config.BBWidthLookback = def.BBWidthLookback
	}
	if config.ATRPeriod <= 0 {
		config.ATRPeriod = def.ATRPeriod
	}
	if config.ADXPeriod <= 0 {
		config.ADXPeriod = def.ADXPeriod
	}
	if config.RSIPeriod <= 0 {
		config.RSIPeriod = def.RSIPeriod
	}
	if config.StochRSIPeriod <= 0 {
		config.StochRSIPeriod = def.StochRSIPeriod
	}
	if config.StochRSISmoothK <= 0 {
		config.StochRSISmoothK = def.StochRSISmoothK
	}
	if config.StochRSISmoothD <= 0 {
		config.StochRSISmoothD = def.StochRSISmoothD
	}
	if config.VWAPSlopeLookback <= 0 {
		config.VWAPSlopeLookback = def.VWAPSlopeLookback
	}
	if config.VolumeRatioPeriod <= 0 {
		config.VolumeRatioPeriod = def.VolumeRatioPeriod
	}
	if config.SupertrendPeriod <= 0 {
		config.SupertrendPeriod = def.SupertrendPeriod
	}
	if config.SupertrendMult <= 0 {
		config.SupertrendMult = def.SupertrendMult
	}
	return &Engine{config: config}
}

// Enrich attaches every indicator column to the given bar sequence.
// Bars must be ordered by timestamp. Indicators that need more history
// than is available yield zero values (NaN for the band-width percentile)
// instead of an error.
func (e *Engine) Enrich(data []types.OHLCV) []Bar {
	bars := make([]Bar, len(data))
	for i := range data {
		bars[i].OHLCV = data[i]
		bars[i].BBWidthPctile = math.NaN()
	}
	if len(bars) == 0 {
		return bars
	}

	e.computeVWAP(bars)
	e.computeBollinger(bars)
	e.computeATRADX(bars)
	e.computeRSI(bars)
	e.computeEMALadder(bars)
	e.computeSupertrend(bars)
	e.computeVolumeRatio(bars)
	e.computeLevels(bars)

	return bars
}

// computeVolumeRatio fills VolumeRatio = volume / SMA(volume, period).
func (e *Engine) computeVolumeRatio(bars []Bar) {
	period := e.config.VolumeRatioPeriod
	sum := 0.0
	for i := range bars {
		sum += bars[i].Volume
		if i >= period {
			sum -= bars[i-period].Volume
		}
		if i >= period-1 {
			avg := sum / float64(period)
			if avg > 0 {
				bars[i].VolumeRatio = bars[i].Volume / avg
			}
		}
	}
}

// sma returns the simple mean of values, or 0 for an empty slice.
func sma(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
