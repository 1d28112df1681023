package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_signals_total",
			Help: "Trade signals generated, by strategy and side",
		},
		[]string{"strategy", "side"},
	)

	gateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_gate_rejections_total",
			Help: "Signals discarded by the universe liquidity gates",
		},
		[]string{"symbol"},
	)

	sizingRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_sizing_rejections_total",
			Help: "Signals discarded because no reduction factor passed the liquidation guards",
		},
		[]string{"symbol"},
	)

	tradesClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_trades_closed_total",
			Help: "Closed trades, by symbol and exit reason",
		},
		[]string{"symbol", "exit_reason"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "falcon_open_positions",
			Help: "Currently open positions",
		},
	)

	accountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "falcon_account_equity",
			Help: "Current account equity in quote currency",
		},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "falcon_scan_duration_seconds",
			Help:    "Duration of one full signal scan across instruments",
			Buckets: prometheus.DefBuckets,
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_errors_total",
			Help: "Errors observed, by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(gateRejectionsTotal)
	prometheus.MustRegister(sizingRejectionsTotal)
	prometheus.MustRegister(tradesClosedTotal)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(accountEquity)
	prometheus.MustRegister(scanDuration)
	prometheus.MustRegister(errorsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSignal counts a generated signal.
func RecordSignal(strategy, side string) {
	signalsTotal.WithLabelValues(strategy, side).Inc()
}

// RecordGateRejection counts a universe-gate rejection.
func RecordGateRejection(symbol string) {
	gateRejectionsTotal.WithLabelValues(symbol).Inc()
}

// RecordSizingRejection counts a liquidation-guard rejection.
func RecordSizingRejection(symbol string) {
	sizingRejectionsTotal.WithLabelValues(symbol).Inc()
}

// RecordTradeClosed counts a closed trade by exit reason.
func RecordTradeClosed(symbol, exitReason string) {
	tradesClosedTotal.WithLabelValues(symbol, exitReason).Inc()
}

// SetOpenPositions updates the open-position gauge.
func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// SetEquity updates the equity gauge.
func SetEquity(equity float64) {
	accountEquity.Set(equity)
}

// ObserveScanDuration records the duration of one scan pass in seconds.
func ObserveScanDuration(seconds float64) {
	scanDuration.Observe(seconds)
}

// RecordError counts an error by taxonomy category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
