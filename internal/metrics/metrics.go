// Package metrics exposes Prometheus instrumentation for the dispatch
// pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixeltrack_events_stored_total",
			Help: "Total number of purchase events enrolled in the delayed queue",
		},
	)

	EventsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixeltrack_events_fired_total",
			Help: "Total number of purchase events sent successfully, by trigger",
		},
		[]string{"trigger"},
	)

	EventsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixeltrack_events_failed_total",
			Help: "Total number of purchase event sends that failed",
		},
	)

	EventsDedupedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixeltrack_events_deduped_total",
			Help: "Total number of duplicate purchase pushes suppressed",
		},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixeltrack_dispatch_duration_seconds",
			Help:    "Duration of sends to the tracking endpoint",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Register() {
	prometheus.MustRegister(
		EventsStoredTotal,
		EventsFiredTotal,
		EventsFailedTotal,
		EventsDedupedTotal,
		DispatchDuration,
	)
}
