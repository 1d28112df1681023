package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantara-labs/falcon/internal/exchange"
	"github.com/quantara-labs/falcon/internal/indicators"
	"github.com/quantara-labs/falcon/internal/logger"
	"github.com/quantara-labs/falcon/internal/monitoring"
	"github.com/quantara-labs/falcon/internal/notifications"
	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/regime"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/state"
	"github.com/quantara-labs/falcon/internal/strategy"
	"github.com/quantara-labs/falcon/internal/universe"
	"github.com/quantara-labs/falcon/pkg/config"
)

const (
	// DefaultMonitorInterval is how often open positions are re-evaluated
	// against fresh market data.
	DefaultMonitorInterval = 5 * time.Second

	// DefaultScanInterval is how often flat symbols are scanned for entries.
	DefaultScanInterval = time.Minute

	// DefaultMaxConcurrency caps parallel symbol scans.
	DefaultMaxConcurrency = 4

	// klineLimit covers indicator warmup on the base interval plus enough
	// history to fill the coarse band-width percentile window.
	klineLimit = 600

	// apiTimeout bounds every exchange call issued by the loops.
	apiTimeout = 30 * time.Second
)

// Bot drives live trading for a set of symbols: a fast loop re-evaluates
// open positions, a slower loop scans flat symbols for new entries. Each
// position is owned by exactly one goroutine at a time; the positions map
// is the single source of local truth and is reconciled against the
// exchange every monitor pass.
type Bot struct {
	cfg      *config.Config
	exchange exchange.Exchange

	enricher   *indicators.Engine
	classifier *regime.Classifier
	router     *strategy.Router
	sizer      *risk.Sizer
	filter     *universe.Filter

	logger   *logger.Logger
	health   *monitoring.HealthChecker
	store    *state.Store
	notifier notifications.Notifier // nil when not configured

	mu           sync.Mutex
	positions    map[string]*position.Position
	pendingExits map[string]pendingExit

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewBot creates a new live trading bot instance.
func NewBot(cfg *config.Config, ex exchange.Exchange) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("exchange is required")
	}

	fileLogger, err := logger.NewLogger(cfg.Live.LogDir, "live")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	regimeThresholds := cfg.Regime
	if len(regimeThresholds) == 0 {
		regimeThresholds = regime.DefaultThresholds()
	}

	return &Bot{
		cfg:          cfg,
		exchange:     ex,
		enricher:     indicators.NewEngine(cfg.Indicators),
		classifier:   regime.NewClassifier(regimeThresholds),
		router:       strategy.NewDefaultRouter(),
		sizer:        risk.NewSizer(cfg.Sizer),
		filter:       universe.NewFilter(cfg.Gates),
		logger:       fileLogger,
		health:       monitoring.NewHealthChecker(),
		store:        state.NewStore(cfg.Live.StateDir),
		notifier:     notifications.FromEnv(),
		positions:    make(map[string]*position.Position),
		pendingExits: make(map[string]pendingExit),
		stopChan:     make(chan struct{}),
	}, nil
}

// Health exposes the liveness checker for the HTTP endpoint.
func (b *Bot) Health() *monitoring.HealthChecker { return b.health }

// Start verifies connectivity and launches the monitor and scan loops.
// It returns once the loops are running; Stop shuts them down.
func (b *Bot) Start() error {
	if b.running {
		return fmt.Errorf("bot is already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	bal, err := b.exchange.GetBalance(ctx, b.quoteAsset())
	if err != nil {
		b.health.SetConnected(false)
		return fmt.Errorf("exchange connectivity check failed: %w", err)
	}
	b.health.SetConnected(true)
	monitoring.SetEquity(bal.Free)
	b.logger.Info("Connected to %s, %s balance: %.2f", b.exchange.GetName(), bal.Asset, bal.Free)

	b.restorePositions()
	b.warnUnknownPositions(ctx)

	b.running = true
	b.wg.Add(2)
	go b.monitorLoop()
	go b.scanLoop()

	b.logger.Info("Bot started: %d symbols, monitor %s, scan %s",
		len(b.symbols()), b.monitorInterval(), b.scanInterval())
	return nil
}

// Stop signals both loops to finish their current pass and waits for them.
func (b *Bot) Stop() {
	if !b.running {
		return
	}
	b.running = false
	close(b.stopChan)
	b.wg.Wait()
	b.logger.Info("Bot stopped")
	b.logger.Close()
}

// monitorLoop re-evaluates open positions on a short ticker.
func (b *Bot) monitorLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.monitorInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.monitorPass()
		case <-b.stopChan:
			return
		}
	}
}

// scanLoop scans flat symbols for entries, bounded by a semaphore so that
// a wide universe does not fan out into unbounded API pressure.
func (b *Bot) scanLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.scanInterval())
	defer ticker.Stop()

	sem := make(chan struct{}, b.maxConcurrency())

	for {
		select {
		case <-ticker.C:
			b.scanPass(sem)
		case <-b.stopChan:
			return
		}
	}
}

// scanPass fans one scan over every flat symbol, waiting for all of them
// so passes never overlap.
func (b *Bot) scanPass(sem chan struct{}) {
	started := time.Now()

	var wg sync.WaitGroup
	for _, symbol := range b.symbols() {
		if b.openPosition(symbol) != nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
			defer cancel()
			if err := b.scanSymbol(ctx, symbol); err != nil {
				b.logger.LogError(fmt.Sprintf("scan %s", symbol), err)
				monitoring.RecordError(categoryOf(err))
			}
		}(symbol)
	}
	wg.Wait()

	monitoring.ObserveScanDuration(time.Since(started).Seconds())
	b.health.MarkScan(b.openCount())
	monitoring.SetOpenPositions(b.openCount())
}

// monitorPass evaluates every open position against the latest bar and
// reconciles local state with the exchange.
func (b *Bot) monitorPass() {
	for _, symbol := range b.symbols() {
		pos := b.openPosition(symbol)
		if pos == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		if err := b.monitorSymbol(ctx, symbol, pos); err != nil {
			b.logger.LogError(fmt.Sprintf("monitor %s", symbol), err)
			monitoring.RecordError(categoryOf(err))
		}
		cancel()
	}
}

// restorePositions resumes lifecycle management of positions persisted by
// a previous run. Snapshots for symbols no longer in the universe are
// dropped with a warning; the monitor loop reconciles the rest against
// the exchange on its first pass.
func (b *Bot) restorePositions() {
	snapshots, err := b.store.Load()
	if err != nil {
		b.logger.LogError("load position state", err)
		return
	}

	symbols := make(map[string]bool, len(b.symbols()))
	for _, s := range b.symbols() {
		symbols[s] = true
	}

	b.mu.Lock()
	for symbol, snap := range snapshots {
		if !symbols[symbol] {
			b.logger.Warning("Dropping persisted %s position: symbol not in universe", symbol)
			continue
		}
		pos := position.FromSnapshot(snap)
		if pos.State() == position.StateClosed {
			continue
		}
		b.positions[symbol] = pos
		b.logger.Info("Restored %s position: %s %.4f @ %.4f, remaining %.4f",
			symbol, pos.Side, pos.Size, pos.EntryPrice, pos.Remaining())
	}
	b.mu.Unlock()

	monitoring.SetOpenPositions(b.openCount())
}

// warnUnknownPositions flags exchange-side positions the bot did not open.
// It never adopts them: without the original signal there is no stop or
// ladder to manage, so they are left to the operator.
func (b *Bot) warnUnknownPositions(ctx context.Context) {
	for _, symbol := range b.symbols() {
		existing, err := b.exchange.GetPositions(ctx, symbol)
		if err != nil {
			b.logger.Warning("Could not check existing positions for %s: %v", symbol, err)
			continue
		}
		for _, p := range existing {
			b.logger.Warning("Unmanaged %s position on exchange: %s %.4f @ %.4f (not adopted)",
				symbol, p.Side, p.Size, p.EntryPrice)
		}
	}
}

func (b *Bot) openPosition(symbol string) *position.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positions[symbol]
}

func (b *Bot) setPosition(symbol string, pos *position.Position) {
	b.mu.Lock()
	if pos == nil {
		delete(b.positions, symbol)
		delete(b.pendingExits, symbol)
	} else {
		b.positions[symbol] = pos
	}
	b.mu.Unlock()

	b.persistPositions()
}

// persistPositions snapshots every open position to the state store so a
// restart can resume stop and ladder management.
func (b *Bot) persistPositions() {
	b.mu.Lock()
	snapshots := make(map[string]position.Snapshot, len(b.positions))
	for symbol, pos := range b.positions {
		snapshots[symbol] = pos.Snapshot()
	}
	b.mu.Unlock()

	if err := b.store.Save(snapshots); err != nil {
		b.logger.LogError("save position state", err)
	}
}

func (b *Bot) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions)
}

func (b *Bot) symbols() []string {
	if len(b.cfg.Live.Symbols) > 0 {
		return b.cfg.Live.Symbols
	}
	return []string{b.cfg.Symbol}
}

func (b *Bot) quoteAsset() string {
	if b.cfg.Live.QuoteAsset != "" {
		return b.cfg.Live.QuoteAsset
	}
	return "USDT"
}

func (b *Bot) monitorInterval() time.Duration {
	if b.cfg.Live.MonitorInterval > 0 {
		return b.cfg.Live.MonitorInterval
	}
	return DefaultMonitorInterval
}

func (b *Bot) scanInterval() time.Duration {
	if b.cfg.Live.ScanInterval > 0 {
		return b.cfg.Live.ScanInterval
	}
	return DefaultScanInterval
}

func (b *Bot) maxConcurrency() int {
	if b.cfg.Live.MaxConcurrency > 0 {
		return b.cfg.Live.MaxConcurrency
	}
	return DefaultMaxConcurrency
}
