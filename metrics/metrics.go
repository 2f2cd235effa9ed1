package metrics

import (
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace prefixes every metric exposed by the auction server.
	Namespace = "auction"

	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// Metrics contains the room metrics.
type Metrics struct {
	// Actions processed, by mechanism, action and outcome.
	Actions metrics.Counter
	// Trades executed in double auctions, by mode.
	Trades metrics.Counter
	// Rooms currently registered.
	Rooms metrics.Gauge
	// Live realtime subscribers across all rooms.
	Subscribers metrics.Gauge
	// Subscribers dropped for falling behind.
	DroppedSubscribers metrics.Counter
	// Timer expiries discarded because they were cancelled or replaced.
	StaleTicks metrics.Counter
	// Time spent applying one action inside the room actor.
	ActionSeconds metrics.Histogram
}

// PrometheusMetrics returns Metrics registered with the default Prometheus
// registry. It must be called at most once per process.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Actions: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Actions processed by room actors.",
		}, []string{"mechanism", "action", "outcome"}),
		Trades: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Double auction trades.",
		}, []string{"mode"}),
		Rooms: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently registered.",
		}, []string{}),
		Subscribers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live realtime subscribers.",
		}, []string{}),
		DroppedSubscribers: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers disconnected for falling behind.",
		}, []string{}),
		StaleTicks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_ticks_total",
			Help:      "Timer expiries ignored after cancellation.",
		}, []string{}),
		ActionSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_seconds",
			Help:      "Time to apply one action.",
			Buckets:   stdprometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"mechanism"}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Actions:            discard.NewCounter(),
		Trades:             discard.NewCounter(),
		Rooms:              discard.NewGauge(),
		Subscribers:        discard.NewGauge(),
		DroppedSubscribers: discard.NewCounter(),
		StaleTicks:         discard.NewCounter(),
		ActionSeconds:      discard.NewHistogram(),
	}
}

// ObserveAction records one processed action.
func (m *Metrics) ObserveAction(mechanism, action, outcome string, took time.Duration) {
	m.Actions.With("mechanism", mechanism, "action", action, "outcome", outcome).Add(1)
	m.ActionSeconds.With("mechanism", mechanism).Observe(took.Seconds())
}
