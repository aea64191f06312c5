package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Projection outcome metrics. RetriesExhausted is the operator-facing signal
// for events that have burned through the attempt ceiling and now wait for
// manual replay.
var (
	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projection_events_processed_total",
		Help: "Events folded into the read model successfully.",
	}, []string{"event_type"})

	EventsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projection_events_failed_total",
		Help: "Event fold attempts that failed and were scheduled for retry.",
	}, []string{"event_type"})

	RetriesExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projection_retries_exhausted_total",
		Help: "Events whose retry budget is exhausted; kept failed for manual replay.",
	}, []string{"event_type"})

	DegradedWarehouseResolutionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "projection_degraded_warehouse_resolution_total",
		Help: "Sales recorded without a stock deduction because no warehouse resolved.",
	})
)
