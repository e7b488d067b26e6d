// Package metrics exposes Prometheus collectors for report generation and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraud_reports"

// Metrics holds every collector of the service on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	reportsGenerated *prometheus.CounterVec
	recordsReported  prometheus.Counter
	reportBytes      prometheus.Histogram
	generateFailures *prometheus.CounterVec
	recordsRequeued  prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_total",
			Help:      "Generate calls by outcome.",
		}, []string{"outcome"}),
		recordsReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_reported_total",
			Help:      "Pending records written into report artifacts.",
		}),
		reportBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_size_bytes",
			Help:      "Size of generated report artifacts.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		generateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_failures_total",
			Help:      "Failed Generate calls by the stage that failed.",
		}, []string{"stage"}),
		recordsRequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_requeued_total",
			Help:      "Drained records put back on the pending list after a failure.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reportsGenerated,
		m.recordsReported,
		m.reportBytes,
		m.generateFailures,
		m.recordsRequeued,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReportGenerated implements reports.Recorder.
func (m *Metrics) ReportGenerated(records, bytes int) {
	m.reportsGenerated.WithLabelValues("created").Inc()
	m.recordsReported.Add(float64(records))
	m.reportBytes.Observe(float64(bytes))
}

// NothingPending implements reports.Recorder.
func (m *Metrics) NothingPending() {
	m.reportsGenerated.WithLabelValues("no_pending_records").Inc()
}

// GenerateFailed implements reports.Recorder.
func (m *Metrics) GenerateFailed(stage string) {
	m.reportsGenerated.WithLabelValues("failed").Inc()
	m.generateFailures.WithLabelValues(stage).Inc()
}

// RecordsRequeued implements reports.Recorder.
func (m *Metrics) RecordsRequeued(records int) {
	m.recordsRequeued.Add(float64(records))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
