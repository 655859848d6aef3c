// Package metrics exposes Prometheus instrumentation for ExchangeCore.
// Grounded on chidi150c-coinbase/metrics.go: package-level collectors
// registered in init(), thin Inc/Observe/Set helpers called from the core
// rather than handling *prometheus.* types at call sites.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_orders_total",
			Help: "Orders placed, by symbol, side, and terminal status.",
		},
		[]string{"symbol", "side", "status"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_fills_total",
			Help: "Individual fills produced by the matcher, by symbol and maker/taker.",
		},
		[]string{"symbol", "liquidity"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_rejections_total",
			Help: "Rejected order attempts, by reason.",
		},
		[]string{"reason"},
	)

	fundingAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_funding_applied_total",
			Help: "Funding accrual applications, by symbol.",
		},
		[]string{"symbol"},
	)

	autoClosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpsim_auto_closes_total",
			Help: "Auto-close attempts from exit-plan triggers, by trigger kind and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	refreshTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perpsim_refresh_tick_seconds",
			Help:    "Wall time spent in one refresh-tick iteration.",
			Buckets: prometheus.DefBuckets,
		},
	)

	bookMidPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perpsim_book_mid_price",
			Help: "Last observed mid price, by symbol.",
		},
		[]string{"symbol"},
	)

	accountEquity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perpsim_account_equity",
			Help: "Last computed equity, by account id.",
		},
		[]string{"account"},
	)
)

func init() {
	prometheus.MustRegister(
		ordersTotal,
		fillsTotal,
		rejectionsTotal,
		fundingAppliedTotal,
		autoClosesTotal,
		refreshTickDuration,
		bookMidPrice,
		accountEquity,
	)
}

// ObserveOrder records a placeOrder outcome.
func ObserveOrder(symbol, side, status string) {
	ordersTotal.WithLabelValues(symbol, side, status).Inc()
}

// ObserveFill records one matcher fill.
func ObserveFill(symbol string, maker bool) {
	liquidity := "taker"
	if maker {
		liquidity = "maker"
	}
	fillsTotal.WithLabelValues(symbol, liquidity).Inc()
}

// ObserveRejection records a rejected order attempt by reason string.
func ObserveRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveFundingApplied records one non-zero funding accrual for symbol.
func ObserveFundingApplied(symbol string) {
	fundingAppliedTotal.WithLabelValues(symbol).Inc()
}

// ObserveAutoClose records an auto-close attempt's trigger kind and outcome
// ("filled", "partial", "rejected").
func ObserveAutoClose(trigger, outcome string) {
	autoClosesTotal.WithLabelValues(trigger, outcome).Inc()
}

// ObserveRefreshTick records one refresh-tick's wall-clock duration.
func ObserveRefreshTick(seconds float64) {
	refreshTickDuration.Observe(seconds)
}

// SetBookMidPrice records the latest mid price for symbol.
func SetBookMidPrice(symbol string, mid float64) {
	bookMidPrice.WithLabelValues(symbol).Set(mid)
}

// SetAccountEquity records the latest equity for accountID.
func SetAccountEquity(accountID string, equity float64) {
	accountEquity.WithLabelValues(accountID).Set(equity)
}
