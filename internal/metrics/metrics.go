// Package metrics exposes the exchange's ambient Prometheus instrumentation
// — counts of orders, quotes, fills, cancels, the current market state, and
// active subscription counts. None of this carries matching semantics; it
// is observability only, wired the way chidi150c-coinbase wires its own
// bot_* metrics into a dedicated registry rather than the global default.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry wraps a dedicated prometheus.Registry so tests can construct a
// fresh one per case instead of colliding on the global default registry.
type Registry struct {
	reg *prometheus.Registry

	OrdersSubmitted     *prometheus.CounterVec
	QuotesSubmitted     prometheus.Counter
	FillsTotal          *prometheus.CounterVec
	CancelsTotal        *prometheus.CounterVec
	MarketState         prometheus.Gauge
	ActiveSubscriptions *prometheus.GaugeVec
}

// New constructs a Registry with every metric registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		OrdersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_orders_submitted_total",
				Help: "Orders submitted, by side.",
			},
			[]string{"side"},
		),
		QuotesSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "exchange_quotes_submitted_total",
				Help: "Quotes submitted.",
			},
		),
		FillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_fills_total",
				Help: "Fill messages emitted, by side.",
			},
			[]string{"side"},
		),
		CancelsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_cancels_total",
				Help: "Cancel messages emitted, by reason.",
			},
			[]string{"reason"},
		),
		MarketState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "exchange_market_state",
				Help: "Current market state: 0=CLOSED, 1=PREOPEN, 2=OPEN.",
			},
		),
		ActiveSubscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exchange_active_subscriptions",
				Help: "Active subscriptions per publisher.",
			},
			[]string{"publisher"},
		),
	}

	r.reg.MustRegister(
		r.OrdersSubmitted,
		r.QuotesSubmitted,
		r.FillsTotal,
		r.CancelsTotal,
		r.MarketState,
		r.ActiveSubscriptions,
	)
	return r
}

// Gatherer exposes the underlying registry to promhttp.HandlerFor.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// MarketStateValue maps a product.State string to the gauge value documented
// on MarketState.
func MarketStateValue(state string) float64 {
	switch state {
	case "PREOPEN":
		return 1
	case "OPEN":
		return 2
	default:
		return 0
	}
}
