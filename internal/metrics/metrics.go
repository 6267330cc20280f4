// Package metrics defines the Prometheus collectors of the librarian and
// exposes an HTTP handler for scraping.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        prometheus.Histogram
	SearchResultsCount   prometheus.Histogram
	OperationsTotal      *prometheus.CounterVec
	LockWaitDuration     *prometheus.HistogramVec
	LibraryDocuments     *prometheus.GaugeVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "librarian_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "librarian_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "librarian_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "librarian_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "librarian_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "librarian_search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "librarian_operations_total",
				Help: "Library operations by name and outcome.",
			},
			[]string{"op", "outcome"},
		),
		LockWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "librarian_lock_wait_seconds",
				Help:    "Time spent waiting for the shared library lock.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 10, 7),
			},
			[]string{"mode"},
		),
		LibraryDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "librarian_documents",
				Help: "Documents in the library by state (visible, assigned).",
			},
			[]string{"state"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.OperationsTotal,
		m.LockWaitDuration,
		m.LibraryDocuments,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveSearch records one search and classifies its outcome.
func (m *Metrics) ObserveSearch(d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(d.Seconds())
	switch {
	case err != nil:
		m.SearchQueriesTotal.WithLabelValues("error").Inc()
	case results == 0:
		m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		m.SearchResultsCount.Observe(0)
	default:
		m.SearchQueriesTotal.WithLabelValues("hit").Inc()
		m.SearchResultsCount.Observe(float64(results))
	}
}

// ObserveOperation counts a library operation by the kind of error it returned.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveLockWait records how long a caller waited for the library lock.
func (m *Metrics) ObserveLockWait(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWaitDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// SetDocuments publishes the visible and assigned document counts.
func (m *Metrics) SetDocuments(visible, assigned int) {
	if m == nil {
		return
	}
	m.LibraryDocuments.WithLabelValues("visible").Set(float64(visible))
	m.LibraryDocuments.WithLabelValues("assigned").Set(float64(assigned))
}

// Outcome maps an operation error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, internalErrors.ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, internalErrors.ErrAmbiguousPrefix):
		return "ambiguous_prefix"
	case errors.Is(err, internalErrors.ErrDuplicateDocument):
		return "duplicate"
	case errors.Is(err, internalErrors.ErrInvalidIdentity), errors.Is(err, internalErrors.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, internalErrors.ErrLockContention):
		return "lock_contention"
	case errors.Is(err, internalErrors.ErrPersistence):
		return "persistence"
	case errors.Is(err, internalErrors.ErrStorage):
		return "storage"
	default:
		return "error"
	}
}
