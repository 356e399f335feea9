// Package monitoring exposes Prometheus metrics for lookups and jobs.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes.
const (
	LookupOK          = "ok"
	LookupError       = "error"
	LookupCircuitOpen = "circuit_open"
	LookupCacheHit    = "cache_hit"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadcheck_lookups_total",
		Help: "Road attribute lookups by outcome",
	}, []string{"result"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadcheck_lookup_duration_seconds",
		Help:    "Road attribute lookup latency including retries",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roadcheck_jobs_active",
		Help: "Analysis jobs currently running",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadcheck_jobs_finished_total",
		Help: "Analysis jobs that reached a terminal state",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadcheck_job_duration_seconds",
		Help:    "Wall time of analysis jobs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadcheck_warnings_total",
		Help: "Warnings raised by category",
	}, []string{"category"})
)

// ObserveLookup records one lookup outcome and its latency.
func ObserveLookup(result string, d time.Duration) {
	lookupsTotal.WithLabelValues(result).Inc()
	lookupDuration.Observe(d.Seconds())
}

// JobStarted marks a job as running.
func JobStarted() {
	jobsActive.Inc()
}

// JobFinished records a terminal job state.
func JobFinished(status string, d time.Duration) {
	jobsActive.Dec()
	jobsFinished.WithLabelValues(status).Inc()
	jobDuration.Observe(d.Seconds())
}

// CountWarning records one warning of the given category.
func CountWarning(category string) {
	findingsTotal.WithLabelValues(category).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
