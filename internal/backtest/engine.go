package backtest

import (
	"time"

	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/regime"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/strategy"
	"github.com/quantara-labs/falcon/internal/universe"
	"github.com/quantara-labs/falcon/pkg/data"
	"github.com/quantara-labs/falcon/pkg/types"
)

// Defaults for the fill and cost model.
const (
	DefaultInitialEquity    = 10000.0
	DefaultMakerFeeBps      = 2.0
	DefaultTakerFeeBps      = 5.5
	DefaultMinSlippageBps   = 2.0
	DefaultMakerTimeoutBars = 3
	DefaultWarmupBars       = 160
	DefaultRegimeInterval   = 15 * time.Minute
)

// Config holds the backtest parameters. Zero-valued fields fall back to
// defaults at construction.
type Config struct {
	InitialEquity    float64       `json:"initial_equity"`
	MakerFeeBps      float64       `json:"maker_fee_bps"`
	TakerFeeBps      float64       `json:"taker_fee_bps"`
	MinSlippageBps   float64       `json:"min_slippage_bps"`
	MakerTimeoutBars int           `json:"maker_timeout_bars"`
	WarmupBars       int           `json:"warmup_bars"`
	RegimeInterval   time.Duration `json:"regime_interval"`

	Indicators indicators.EngineConfig            `json:"indicators"`
	Regime     map[types.Bucket]regime.Thresholds `json:"regime"`
	Sizer      risk.SizerConfig                   `json:"sizer"`
	Gates      universe.GateConfig                `json:"gates"`
}

// Engine drives the full decision pipeline bar by bar over one
// instrument's history. It is single-threaded and deterministic: two runs
// over identical input and configuration produce identical ledgers and
// equity curves.
type Engine struct {
	config     Config
	enricher   *indicators.Engine
	classifier *regime.Classifier
	router     *strategy.Router
	sizer      *risk.Sizer
	filter     *universe.Filter
}

// pendingOrder is a signal waiting on its post-only fill attempt.
type pendingOrder struct {
	sig    *strategy.TradeSignal
	sized  risk.Result
	waited int
}

// NewEngine creates a backtest engine with the default generator chain.
func NewEngine(config Config) *Engine {
	if config.InitialEquity <= 0 {
		config.InitialEquity = DefaultInitialEquity
	}
	if config.MakerFeeBps <= 0 {
		config.MakerFeeBps = DefaultMakerFeeBps
	}
	if config.TakerFeeBps <= 0 {
		config.TakerFeeBps = DefaultTakerFeeBps
	}
	if config.MinSlippageBps <= 0 {
		config.MinSlippageBps = DefaultMinSlippageBps
	}
	if config.MakerTimeoutBars <= 0 {
		config.MakerTimeoutBars = DefaultMakerTimeoutBars
	}
	if config.WarmupBars <= 0 {
		config.WarmupBars = DefaultWarmupBars
	}
	if config.RegimeInterval <= 0 {
		config.RegimeInterval = DefaultRegimeInterval
	}
	return &Engine{
		config:     config,
		enricher:   indicators.NewEngine(config.Indicators),
		classifier: regime.NewClassifier(config.Regime),
		router:     strategy.NewDefaultRouter(),
		sizer:      risk.NewSizer(config.Sizer),
		filter:     universe.NewFilter(config.Gates),
	}
}

// Run replays the candle history through the decision pipeline. The market
// snapshot stands in for live book data: it gates signals and selects the
// instrument's bucket for the whole run.
func (e *Engine) Run(instrument types.Instrument, snapshot types.MarketSnapshot, candles []types.OHLCV) *Result {
	res := newResult(instrument.Symbol, e.config.InitialEquity)
	if len(candles) == 0 {
		return res
	}

	bars := e.enricher.Enrich(candles)
	coarse := e.enricher.Enrich(data.Resample(candles, e.config.RegimeInterval))
	bucket := e.filter.ClassifyBucket(snapshot)
	ctx := strategy.Context{Symbol: instrument.Symbol, Bucket: bucket}

	res.StartTime = bars[0].Timestamp
	res.EndTime = bars[len(bars)-1].Timestamp

	barStep := 5 * time.Minute
	if len(bars) > 1 {
		barStep = bars[1].Timestamp.Sub(bars[0].Timestamp)
	}

	spreadBps := snapshot.SpreadBps
	if spreadBps <= 0 {
		spreadBps = e.config.MinSlippageBps
	}

	realized := e.config.InitialEquity
	var pos *position.Position
	var posFees, posSlippage float64
	var pending *pendingOrder
	ri := -1 // latest completed coarse bar

	for i := e.config.WarmupBars; i < len(bars); i++ {
		bar := bars[i]
		barClose := bar.Timestamp.Add(barStep)

		for ri+1 < len(coarse) && !coarse[ri+1].Timestamp.Add(e.config.RegimeInterval).After(barClose) {
			ri++
		}

		openedThisBar := false
		if pending != nil {
			if fill, slip, ok := e.makerFill(pending.sig, bar, spreadBps); ok {
				pos = position.Open(pending.sig, pending.sized, fill, barClose)
				posFees = pos.Notional * e.config.MakerFeeBps / 10000
				posSlippage = slip * pending.sized.Contracts
				pending = nil
				openedThisBar = true
			} else if pending.waited++; pending.waited >= e.config.MakerTimeoutBars {
				fill, slip := e.takerFill(pending.sig.Side, bar.Close, spreadBps)
				pos = position.Open(pending.sig, pending.sized, fill, barClose)
				posFees = pos.Notional * e.config.TakerFeeBps / 10000
				posSlippage = slip * pending.sized.Contracts
				pending = nil
				openedThisBar = true
			}
		}

		if pos != nil && !openedThisBar {
			if trade := pos.Evaluate(bar); trade != nil {
				e.settle(res, trade, posFees, posSlippage)
				realized += trade.PnL - trade.Fees
				pos = nil
			}
		}

		if pos == nil && pending == nil && ri >= 0 {
			rb := coarse[ri]
			snap := e.classifier.Classify(bucket, rb.ADX, rb.BBWidthPctile, rb.VWAPSlopeSigma)
			if sig := e.router.Evaluate(bars, snap, ctx, i); sig != nil {
				res.SignalsSeen++
				if pass, reason := e.filter.Check(snapshot); !pass {
					res.GateRejections[reason]++
				} else {
					sized := e.sizer.Size(risk.Request{
						Symbol:     instrument.Symbol,
						Side:       sig.Side,
						Entry:      sig.Entry,
						Stop:       sig.Stop,
						Equity:     realized,
						Instrument: instrument,
						Bucket:     bucket,
					})
					if !sized.Passed {
						res.SizingRejected++
					} else {
						pending = &pendingOrder{sig: sig, sized: sized}
					}
				}
			}
		}

		equity := realized
		if pos != nil {
			equity += pos.MarkPnL(bar.Close)
		}
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Time: barClose, Equity: equity})
	}

	if pos != nil {
		last := bars[len(bars)-1]
		if trade := pos.OnEndOfData(last.Close, last.Timestamp.Add(barStep)); trade != nil {
			e.settle(res, trade, posFees, posSlippage)
			realized += trade.PnL - trade.Fees
		}
	}

	finalize(res, barStep)
	return res
}

// makerFill attempts the post-only fill at the signal's limit price. Cost
// is half the spread, applied against the position.
func (e *Engine) makerFill(sig *strategy.TradeSignal, bar indicators.Bar, spreadBps float64) (fill, slippage float64, ok bool) {
	halfSpread := spreadBps / 2 / 10000
	if sig.Side == strategy.SideLong {
		if bar.Low > sig.Entry {
			return 0, 0, false
		}
		fill = sig.Entry * (1 + halfSpread)
	} else {
		if bar.High < sig.Entry {
			return 0, 0, false
		}
		fill = sig.Entry * (1 - halfSpread)
	}
	return fill, sig.Entry * halfSpread, true
}

// takerFill crosses the book at the current close, paying the full spread
// plus the minimum slippage floor.
func (e *Engine) takerFill(side strategy.Side, close, spreadBps float64) (fill, slippage float64) {
	cost := (spreadBps + e.config.MinSlippageBps) / 10000
	if side == strategy.SideLong {
		return close * (1 + cost), close * cost
	}
	return close * (1 - cost), close * cost
}

// settle applies fees and slippage to a closed trade and records it. Take
// profit exits rest on the book and pay maker fees; every other exit
// crosses and pays taker.
func (e *Engine) settle(res *Result, trade *position.Trade, entryFees, entrySlippage float64) {
	fees := entryFees
	for _, exit := range trade.Exits {
		rate := e.config.TakerFeeBps
		switch exit.Reason {
		case position.ExitTP1, position.ExitTP2, position.ExitTP3:
			rate = e.config.MakerFeeBps
		}
		fees += exit.Price * exit.Qty * rate / 10000
	}
	trade.Fees = fees
	trade.Slippage = entrySlippage
	res.recordTrade(*trade)
}
