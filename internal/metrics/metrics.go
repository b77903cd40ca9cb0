// Package metrics exposes the scheduler's operational counters over
// Prometheus. Persistent dispatch failure is observable only here and in
// the logs; there is no user-facing failure surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal       prometheus.Counter
	RunsMaterialized  prometheus.Counter
	NotificationsSent prometheus.Counter
	DispatchFailures  prometheus.Counter
	ConfigFaults      prometheus.Counter
	CycleDuration     prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Completed scheduler cycles.",
		}),
		RunsMaterialized: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_runs_materialized_total",
			Help: "Job runs created by the materializer.",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_notifications_sent_total",
			Help: "Reminders delivered and marked sent.",
		}),
		DispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_dispatch_failures_total",
			Help: "Dispatch attempts that failed and were left pending for retry.",
		}),
		ConfigFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_config_faults_total",
			Help: "Jobs skipped for a cycle due to an invalid recurrence rule.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_cycle_duration_seconds",
			Help:    "Wall-clock duration of one materialize/scan/dispatch cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
