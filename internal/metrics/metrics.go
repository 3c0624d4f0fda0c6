// Package metrics exposes Prometheus metrics for generation runs.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/content-guard/internal/generation"
)

// Metrics holds the collectors for the generation loop
type Metrics struct {
	registry *prometheus.Registry

	AttemptsTotal       *prometheus.CounterVec
	PlagiarismScore     prometheus.Histogram
	RunsTotal           *prometheus.CounterVec
	AttemptsPerRun      prometheus.Histogram
	SearchQueriesTotal  *prometheus.CounterVec
	PersistWritesTotal  *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_guard_attempts_total",
				Help: "Generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		PlagiarismScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "content_guard_plagiarism_score_percent",
				Help:    "Plagiarism score of each attempt",
				Buckets: []float64{0, 5, 10, 20, 30, 50, 75, 100},
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_guard_runs_total",
				Help: "Completed generation runs by final state",
			},
			[]string{"state"},
		),
		AttemptsPerRun: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "content_guard_attempts_per_run",
				Help:    "Number of attempts used by a run",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_guard_search_queries_total",
				Help: "Web search queries by status",
			},
			[]string{"status"},
		),
		PersistWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_guard_persist_writes_total",
				Help: "Writes of accepted content by status",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_guard_http_requests_total",
				Help: "HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "content_guard_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~160s
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.AttemptsTotal,
		m.PlagiarismScore,
		m.RunsTotal,
		m.AttemptsPerRun,
		m.SearchQueriesTotal,
		m.PersistWritesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt records a scored attempt.
func (m *Metrics) ObserveAttempt(score float64, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.PlagiarismScore.Observe(score)
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(state generation.State, attempts int) {
	m.RunsTotal.WithLabelValues(string(state)).Inc()
	m.AttemptsPerRun.Observe(float64(attempts))
}

// ObserveSearch records one search query.
func (m *Metrics) ObserveSearch(ok bool) {
	m.SearchQueriesTotal.WithLabelValues(status(ok)).Inc()
}

// ObservePersist records one write of accepted content.
func (m *Metrics) ObservePersist(ok bool) {
	m.PersistWritesTotal.WithLabelValues(status(ok)).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, code int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
