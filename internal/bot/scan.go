package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	coreerrors "github.com/quantara-labs/falcon/internal/errors"
	"github.com/quantara-labs/falcon/internal/exchange"
	"github.com/quantara-labs/falcon/internal/monitoring"
	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/strategy"
	"github.com/quantara-labs/falcon/pkg/data"
	"github.com/quantara-labs/falcon/pkg/types"
)

// scanSymbol runs one full decision pass for a flat symbol: gates, regime,
// signal, sizing, and entry. Rejections at any stage are normal outcomes
// and end the pass without error.
func (b *Bot) scanSymbol(ctx context.Context, symbol string) error {
	snap, err := b.exchange.GetMarketSnapshot(ctx, symbol)
	if err != nil {
		return coreerrors.Categorize(err, "scanner", "get_snapshot")
	}

	candles, err := b.exchange.GetKlines(ctx, symbol, b.interval(), klineLimit)
	if err != nil {
		return coreerrors.Categorize(err, "scanner", "get_klines")
	}
	warmup := b.warmupBars()
	if len(candles) <= warmup {
		b.logger.Info("%s: %d candles, need more than %d for warmup", symbol, len(candles), warmup)
		return nil
	}

	bars := b.enricher.Enrich(candles)
	coarse := b.enricher.Enrich(data.Resample(candles, b.regimeInterval()))
	if len(coarse) == 0 {
		return nil
	}

	bucket := b.filter.ClassifyBucket(*snap)
	latest := coarse[len(coarse)-1]
	regimeSnap := b.classifier.Classify(bucket, latest.ADX, latest.BBWidthPctile, latest.VWAPSlopeSigma)

	sig := b.router.Evaluate(bars, regimeSnap, strategy.Context{Symbol: symbol, Bucket: bucket}, len(bars)-1)
	if sig == nil {
		return nil
	}
	monitoring.RecordSignal(sig.Strategy, sig.Side.String())

	if ok, reason := b.filter.Check(*snap); !ok {
		b.logger.LogSignal(sig, fmt.Sprintf("gate rejected: %s", reason))
		monitoring.RecordGateRejection(symbol)
		return nil
	}

	return b.executeEntry(ctx, sig, bucket)
}

// executeEntry sizes a signal and, if it passes, enters at market.
func (b *Bot) executeEntry(ctx context.Context, sig *strategy.TradeSignal, bucket types.Bucket) error {
	instrument, err := b.exchange.GetInstrument(ctx, sig.Symbol)
	if err != nil {
		return coreerrors.Categorize(err, "scanner", "get_instrument")
	}
	bal, err := b.exchange.GetBalance(ctx, b.quoteAsset())
	if err != nil {
		return coreerrors.Categorize(err, "scanner", "get_balance")
	}
	monitoring.SetEquity(bal.Free)

	sized := b.sizer.Size(risk.Request{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Entry:      sig.Entry,
		Stop:       sig.Stop,
		Equity:     bal.Free,
		Instrument: *instrument,
		Bucket:     bucket,
	})
	if !sized.Passed {
		b.logger.LogSignal(sig, fmt.Sprintf("sizing rejected: %s", sized.Reason))
		monitoring.RecordSizingRejection(sig.Symbol)
		return nil
	}

	fill, err := b.exchange.PlaceMarketOrder(ctx, sig.Symbol, entrySide(sig.Side), sized.Contracts)
	if err != nil {
		return coreerrors.Categorize(err, "scanner", "place_entry")
	}

	pos := position.Open(sig, sized, fill.Price, time.Now().UTC())
	b.setPosition(sig.Symbol, pos)
	monitoring.SetOpenPositions(b.openCount())

	b.logger.LogSignal(sig, "entered")
	b.logger.LogEntry(pos)
	b.logger.Info("%s: entry fill %.4f x %.4f (order %s, reduction %.2f)",
		sig.Symbol, fill.Price, fill.Qty, fill.OrderID, sized.ReductionFactor)
	b.notifyEntry(pos)
	return nil
}

// pendingExit is an exit the lifecycle already booked locally whose
// reduce order has not been filled yet. It is re-sent on the next
// monitor pass until it succeeds; the trade, if the exit closed the
// position, is held back until the order is through.
type pendingExit struct {
	qty   float64
	trade *position.Trade
}

// monitorSymbol reconciles one open position with the exchange, then
// re-evaluates it against the latest enriched bar and executes whatever
// the lifecycle decided: partial take-profits, a full close, or nothing.
func (b *Bot) monitorSymbol(ctx context.Context, symbol string, pos *position.Position) error {
	closed, err := b.reconcile(ctx, symbol, pos)
	if err != nil || closed {
		return err
	}

	done, err := b.flushPendingExit(ctx, symbol, pos)
	if err != nil || done {
		return err
	}

	candles, err := b.exchange.GetKlines(ctx, symbol, b.interval(), klineLimit)
	if err != nil {
		return coreerrors.Categorize(err, "monitor", "get_klines")
	}
	bars := b.enricher.Enrich(candles)
	if len(bars) == 0 {
		return nil
	}
	bar := bars[len(bars)-1]

	before := pos.Remaining()
	trade := pos.Evaluate(bar)
	reduced := before - pos.Remaining()
	if trade != nil {
		reduced = before
	}
	if reduced > 0 {
		if err := b.reduce(ctx, symbol, pos, reduced); err != nil {
			b.deferExit(symbol, reduced, trade)
			return err
		}
	}
	if trade != nil {
		b.finishTrade(symbol, trade)
	} else if reduced > 0 {
		b.persistPositions() // partial exit moved the stop and ladder
	}
	return nil
}

// flushPendingExit re-sends the reduce order for an exit booked on an
// earlier pass. Until it fills, the exchange position is larger than
// local state says. Returns done=true when the pending exit closed the
// position.
func (b *Bot) flushPendingExit(ctx context.Context, symbol string, pos *position.Position) (bool, error) {
	b.mu.Lock()
	pe, ok := b.pendingExits[symbol]
	b.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := b.reduce(ctx, symbol, pos, pe.qty); err != nil {
		return false, err
	}

	b.mu.Lock()
	delete(b.pendingExits, symbol)
	b.mu.Unlock()

	if pe.trade != nil {
		b.finishTrade(symbol, pe.trade)
		return true, nil
	}
	b.persistPositions()
	return false, nil
}

// deferExit books an exit order that could not be sent so the next
// monitor pass retries it.
func (b *Bot) deferExit(symbol string, qty float64, trade *position.Trade) {
	b.mu.Lock()
	pe := b.pendingExits[symbol]
	pe.qty += qty
	if trade != nil {
		pe.trade = trade
	}
	b.pendingExits[symbol] = pe
	b.mu.Unlock()

	b.logger.Warning("%s: exit order for %.4f failed, will re-send next pass", symbol, qty)
}

// reconcile detects positions closed out from under the bot (manual close,
// liquidation, ADL). The exchange is the source of truth; local state is
// folded into an external-close trade.
func (b *Bot) reconcile(ctx context.Context, symbol string, pos *position.Position) (bool, error) {
	existing, err := b.exchange.GetPositions(ctx, symbol)
	if err != nil {
		return false, coreerrors.Categorize(err, "monitor", "get_positions")
	}
	if len(existing) > 0 {
		return false, nil
	}

	ticker, err := b.exchange.GetTicker(ctx, symbol)
	if err != nil {
		return false, coreerrors.Categorize(err, "monitor", "get_ticker")
	}
	monitoring.RecordError(string(coreerrors.CategoryStateInconsistency))
	trade := pos.OnExternalClose(ticker.Price, time.Now().UTC())
	if trade != nil {
		b.logger.Warning("%s: position closed externally, marking at %.4f", symbol, ticker.Price)
		b.finishTrade(symbol, trade)
	}
	return true, nil
}

// reduce sends the market order that realizes an exit the lifecycle
// already booked locally.
func (b *Bot) reduce(ctx context.Context, symbol string, pos *position.Position, qty float64) error {
	fill, err := b.exchange.PlaceMarketOrder(ctx, symbol, exitSide(pos.Side), qty)
	if err != nil {
		return coreerrors.Categorize(err, "monitor", "place_exit")
	}
	b.logger.Info("%s: exit fill %.4f x %.4f (order %s), remaining %.4f",
		symbol, fill.Price, fill.Qty, fill.OrderID, pos.Remaining())
	return nil
}

// finishTrade clears local state and records the completed trade.
func (b *Bot) finishTrade(symbol string, trade *position.Trade) {
	b.setPosition(symbol, nil)
	b.logger.LogExit(trade)
	monitoring.RecordTradeClosed(symbol, string(trade.ExitReason))
	monitoring.SetOpenPositions(b.openCount())
	b.notifyExit(trade)
}

// notifyEntry and notifyExit push trade events off the hot path; delivery
// failures are logged, never propagated.
func (b *Bot) notifyEntry(pos *position.Position) {
	if b.notifier == nil {
		return
	}
	go func() {
		if err := b.notifier.NotifyEntry(pos); err != nil {
			b.logger.LogError("entry notification", err)
		}
	}()
}

func (b *Bot) notifyExit(trade *position.Trade) {
	if b.notifier == nil {
		return
	}
	go func() {
		if err := b.notifier.NotifyExit(trade); err != nil {
			b.logger.LogError("exit notification", err)
		}
	}()
}

func (b *Bot) interval() string {
	if b.cfg.Interval != "" {
		return b.cfg.Interval
	}
	return "5"
}

func (b *Bot) warmupBars() int {
	if b.cfg.Backtest.WarmupBars > 0 {
		return b.cfg.Backtest.WarmupBars
	}
	return 160
}

func (b *Bot) regimeInterval() time.Duration {
	if b.cfg.Backtest.RegimeInterval > 0 {
		return b.cfg.Backtest.RegimeInterval
	}
	return 15 * time.Minute
}

func entrySide(side strategy.Side) exchange.OrderSide {
	if side == strategy.SideLong {
		return exchange.OrderBuy
	}
	return exchange.OrderSell
}

func exitSide(side strategy.Side) exchange.OrderSide {
	if side == strategy.SideLong {
		return exchange.OrderSell
	}
	return exchange.OrderBuy
}

// categoryOf extracts the error category for metrics labeling.
func categoryOf(err error) string {
	var ce *coreerrors.CoreError
	if errors.As(err, &ce) {
		return string(ce.Category)
	}
	return string(coreerrors.CategoryExecutionTransient)
}
