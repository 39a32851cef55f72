package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersPlaced counts limit orders accepted by the engine, by side.
var OrdersPlaced = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexbook_orders_placed_total",
		Help: "Total number of limit orders placed",
	},
	[]string{"side"},
)

// OrdersCancelled counts explicit cancellations, by side.
var OrdersCancelled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexbook_orders_cancelled_total",
		Help: "Total number of limit orders cancelled by their owners",
	},
	[]string{"side"},
)

// OrdersExpired counts orders removed by the per-block expiration sweep.
var OrdersExpired = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexbook_orders_expired_total",
		Help: "Total number of limit orders removed at expiration",
	},
)

// TradesExecuted counts individual maker fills produced by matching.
var TradesExecuted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexbook_trades_executed_total",
		Help: "Total number of trades executed against resting orders",
	},
)

// MatchLatency records latency distribution for matching passes.
var MatchLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "dexbook_match_latency_seconds",
		Help:    "Latency in seconds of a single matching pass",
		Buckets: prometheus.DefBuckets,
	},
)

// RestingOrders tracks the number of resting orders per book.
var RestingOrders = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dexbook_resting_orders",
		Help: "Number of limit orders currently resting in a book",
	},
	[]string{"book"},
)

func init() {
	prometheus.MustRegister(OrdersPlaced, OrdersCancelled, OrdersExpired)
	prometheus.MustRegister(TradesExecuted, MatchLatency, RestingOrders)
}
