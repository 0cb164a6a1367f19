// Package metrics exposes Prometheus counters for the discovery pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "internradar"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	FetchAttempts  *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	Listings       *prometheus.CounterVec
	NewRecords     *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	LastCycle      prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by outcome (success, transient, rate_limited, permanent)",
		}, []string{"outcome"}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Sources that produced no result in a cycle, by failure stage",
		}, []string{"source", "stage"}),
		Listings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_total",
			Help:      "Listing elements matched on fetched pages",
		}, []string{"source"}),
		NewRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_records_total",
			Help:      "Relevant records inserted into the dedup store",
		}, []string{"source"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Dedup store insert failures",
		}, []string{"source"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Digest deliveries by result (delivered, failed)",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one discovery cycle",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}),
		LastCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch counts one fetch attempt.
func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

// ObserveSource records the counters of one successfully processed source.
func (m *Metrics) ObserveSource(source string, listings, newRecords, storeErrors int) {
	if m == nil {
		return
	}
	m.Listings.WithLabelValues(source).Add(float64(listings))
	m.NewRecords.WithLabelValues(source).Add(float64(newRecords))
	m.StoreErrors.WithLabelValues(source).Add(float64(storeErrors))
}

// SourceFailed counts a source that failed at stage (fetch, extract, cancelled).
func (m *Metrics) SourceFailed(source, stage string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(source, stage).Inc()
}

// ObserveNotification counts one digest attempt.
func (m *Metrics) ObserveNotification(delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.Notifications.WithLabelValues(result).Inc()
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
	m.LastCycle.Set(float64(finished.Unix()))
}
