// Package metrics exposes the prometheus collectors of the market.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bourse"

var (
	OrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders accepted into the book, by side.",
	}, []string{"side"})

	OrdersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_rejected_total",
		Help:      "Orders refused at submission or evicted at match time, by reason.",
	}, []string{"reason"})

	TradesExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_executed_total",
		Help:      "Matched pairs settled, by symbol.",
	}, []string{"symbol"})

	FeesCollected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fees_collected_total",
		Help:      "Sum of buyer and seller fees charged.",
	})

	MatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_failures_total",
		Help:      "Books skipped in a matching pass after an internal failure, by symbol.",
	}, []string{"symbol"})

	Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "clock",
		Name:      "ticks_total",
		Help:      "Completed market clock ticks.",
	})

	TickFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "clock",
		Name:      "tick_failures_total",
		Help:      "Ticks aborted by an internal failure.",
	})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "clock",
		Name:      "tick_duration_seconds",
		Help:      "Time spent holding the market lock per tick.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events discarded because the dispatch queue was full.",
	})

	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "subscribers",
		Help:      "Connected websocket subscribers.",
	})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		OrdersPlaced,
		OrdersRejected,
		TradesExecuted,
		FeesCollected,
		MatchFailures,
		Ticks,
		TickFailures,
		TickDuration,
		EventsDropped,
		Subscribers,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
