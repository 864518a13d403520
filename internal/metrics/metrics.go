// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	candidatesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortscout_candidates_discovered_total",
			Help: "Candidate rows extracted from search pages, labeled by partition.",
		},
		[]string{"partition"},
	)

	candidatesSelected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortscout_candidates_selected_total",
			Help: "Candidates picked for acquisition, labeled by partition.",
		},
		[]string{"partition"},
	)

	publishOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortscout_publish_total",
			Help: "Publish attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	acquireFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortscout_acquire_failures_total",
			Help: "Failed download attempts, including ones later retried.",
		},
	)

	acquireBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortscout_acquire_backoff_seconds",
			Help:    "Backoff waits between download attempts.",
			Buckets: []float64{1, 2, 4, 8, 16, 30},
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortscout_runs_total",
			Help: "Completed pipeline runs, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovered counts extracted candidates for a partition.
func ObserveDiscovered(partition string, n int) {
	if n > 0 {
		candidatesDiscovered.WithLabelValues(partition).Add(float64(n))
	}
}

// ObserveSelected counts a candidate picked for acquisition.
func ObserveSelected(partition string) {
	candidatesSelected.WithLabelValues(partition).Inc()
}

// ObservePublish counts one publish attempt outcome ("ok" or "failed").
func ObservePublish(outcome string) {
	publishOutcomes.WithLabelValues(outcome).Inc()
}

// IncAcquireFailure counts one failed download attempt.
func IncAcquireFailure() {
	acquireFailures.Inc()
}

// ObserveAcquireBackoff records a backoff wait.
func ObserveAcquireBackoff(d time.Duration) {
	acquireBackoffSeconds.Observe(d.Seconds())
}

// ObserveRun counts a finished run ("ok" or "failed").
func ObserveRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}
