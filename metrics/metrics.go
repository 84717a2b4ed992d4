// Package metrics provides Prometheus metrics collection for the dossier
// API. It exports HTTP server metrics plus domain counters:
//   - dossier_saves_total / dossier_loads_total: store traffic by kind
//   - dossier_broadcasts_total: frames fanned out on slot channels
//   - dossier_active_subscriptions: live slot channel listeners
//   - dossier_debounce_coalesced_total: local edits absorbed into an
//     already-armed debounce window
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	SavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_saves_total",
			Help: "Total record saves by kind (slot, archive)",
		},
		[]string{"kind"},
	)

	LoadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dossier_loads_total",
			Help: "Total record fetches",
		},
	)

	BroadcastsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dossier_broadcasts_total",
			Help: "Total update frames delivered on slot channels",
		},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dossier_active_subscriptions",
			Help: "Current live slot channel subscriptions",
		},
	)

	DebounceCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dossier_debounce_coalesced_total",
			Help: "Local edits absorbed into an already-armed debounce window",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(SavesTotal)
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(BroadcastsTotal)
	prometheus.MustRegister(ActiveSubscriptions)
	prometheus.MustRegister(DebounceCoalescedTotal)
}
