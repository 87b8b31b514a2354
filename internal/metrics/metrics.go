// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mutations counts bill/split mutation attempts by operation and outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "mutations_total",
		Help:      "Bill and split mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	// FanoutPublished counts snapshot frames delivered to subscribers.
	FanoutPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "fanout_frames_published_total",
		Help:      "Snapshot frames delivered to realtime subscribers.",
	})

	// FanoutDropped counts snapshot frames dropped on full subscriber buffers.
	FanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "fanout_frames_dropped_total",
		Help:      "Snapshot frames dropped because a subscriber buffer was full.",
	})

	// ActiveSessions tracks open realtime sessions by kind (bill, list).
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "billing",
		Name:      "realtime_sessions_active",
		Help:      "Open realtime sessions by kind.",
	}, []string{"kind"})
)

// Outcome labels for Mutations.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
