// Package metrics provides Prometheus metrics for the Comet Escape session service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsStarted  prometheus.Counter
	sessionsRejected *prometheus.CounterVec
	finishes         *prometheus.CounterVec
	openSessions     prometheus.Gauge

	// Quota
	quotaBuckets  prometheus.Gauge
	pointsAwarded prometheus.Counter

	// Award dispatch
	awardLatency    prometheus.Histogram
	awardQueueSize  prometheus.Gauge
	awardQueueDrops prometheus.Counter
	awardWorkers    prometheus.Gauge

	// Reclamation
	sweepRuns     prometheus.Counter
	sweepFailures prometheus.Counter
	sweepEvicted  *prometheus.CounterVec
	sweepDuration prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByType        *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global metrics on a fresh registry with opts applied.
// Call it once at startup, before anything records or serves metrics.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "comet",
		subsystem:        "sessions",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsStarted = m.counter("started_total", "Total number of sessions created")
	m.sessionsRejected = m.counterVec("start_rejected_total", "Session starts rejected by reason", "reason")
	m.finishes = m.counterVec("finish_total", "Finish requests by outcome", "outcome")
	m.openSessions = m.gauge("tracked", "Sessions currently held in the store")

	m.quotaBuckets = m.gauge("quota_buckets", "Daily quota buckets currently tracked")
	m.pointsAwarded = m.counter("points_awarded_total", "Total points confirmed by the points service")

	m.awardLatency = m.histogram("award_latency_milliseconds", "Latency of calls to the points service", m.histogramBuckets)
	m.awardQueueSize = m.gauge("award_queue_size", "Award jobs waiting for a worker")
	m.awardQueueDrops = m.counter("award_queue_rejected_total", "Award jobs rejected because the queue was full or closed")
	m.awardWorkers = m.gauge("award_workers", "Number of award workers")

	m.sweepRuns = m.counter("sweep_runs_total", "Completed reclamation sweeps")
	m.sweepFailures = m.counter("sweep_failures_total", "Reclamation sweeps that failed")
	m.sweepEvicted = m.counterVec("sweep_evicted_total", "Entries evicted by the sweeper", "store")
	m.sweepDuration = m.histogram("sweep_duration_milliseconds", "Duration of reclamation sweeps", m.histogramBuckets)

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByType = m.counterVec("errors_total", "Errors by type and severity", "type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSessionStarted increments the created sessions counter.
func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }

// RecordSessionRejected counts a refused session start.
func RecordSessionRejected(reason string) { globalManager.sessionsRejected.WithLabelValues(reason).Inc() }

// RecordFinish counts a finish request by outcome.
func RecordFinish(outcome string) { globalManager.finishes.WithLabelValues(outcome).Inc() }

// UpdateTrackedSessions sets the number of sessions held in the store.
func UpdateTrackedSessions(n int) { globalManager.openSessions.Set(float64(n)) }

// UpdateQuotaBuckets sets the number of tracked quota buckets.
func UpdateQuotaBuckets(n int) { globalManager.quotaBuckets.Set(float64(n)) }

// RecordPointsAwarded adds confirmed points.
func RecordPointsAwarded(points int) { globalManager.pointsAwarded.Add(float64(points)) }

// RecordAwardLatency records a points service call latency in milliseconds.
func RecordAwardLatency(latencyMs float64) { globalManager.awardLatency.Observe(latencyMs) }

// UpdateAwardQueueSize sets the award queue backlog.
func UpdateAwardQueueSize(n int) { globalManager.awardQueueSize.Set(float64(n)) }

// RecordAwardQueueRejected counts a job that could not be enqueued.
func RecordAwardQueueRejected() { globalManager.awardQueueDrops.Inc() }

// UpdateAwardWorkers sets the award worker count.
func UpdateAwardWorkers(n int) { globalManager.awardWorkers.Set(float64(n)) }

// RecordSweep records a completed sweep and what it evicted.
func RecordSweep(sessions, buckets int, durationMs float64) {
	globalManager.sweepRuns.Inc()
	globalManager.sweepEvicted.WithLabelValues("sessions").Add(float64(sessions))
	globalManager.sweepEvicted.WithLabelValues("quota").Add(float64(buckets))
	globalManager.sweepDuration.Observe(durationMs)
}

// RecordSweepFailure counts a failed sweep.
func RecordSweepFailure() { globalManager.sweepFailures.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error occurrence by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
