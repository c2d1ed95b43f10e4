// Package metrics exposes Prometheus collectors shared by the aggregation
// core and the HTTP layer. Collectors are registered with the default
// registry so cmd/web only has to mount promhttp.Handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AggregationRuns counts aggregation runs by outcome
	// (ok, empty, error).
	AggregationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "aggregation_runs_total",
		Help:      "Number of playlist aggregation runs by outcome.",
	}, []string{"outcome"})

	// MemberSkips counts members skipped during aggregation by reason
	// (no_credential, credential_error, preference_error, fetch_error).
	MemberSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "aggregation_member_skips_total",
		Help:      "Members that contributed nothing to an aggregation run.",
	}, []string{"reason"})

	// SelectedTracks observes the playlist size produced per run.
	SelectedTracks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trivia",
		Name:      "aggregation_selected_tracks",
		Help:      "Tracks selected per aggregation run.",
		Buckets:   []float64{0, 10, 25, 50, 75, 100, 120, 200},
	})

	// AggregationDuration observes wall time spent per run.
	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trivia",
		Name:      "aggregation_duration_seconds",
		Help:      "Time spent aggregating a group playlist.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trivia",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

// ObserveRun records the outcome of one aggregation run.
func ObserveRun(outcome string, selected int, started time.Time) {
	AggregationRuns.WithLabelValues(outcome).Inc()
	SelectedTracks.Observe(float64(selected))
	AggregationDuration.Observe(time.Since(started).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps next and records request counts and latency.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
