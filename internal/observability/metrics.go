package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestCount      *prometheus.CounterVec
	errorCount        *prometheus.CounterVec
	breachesDetected  *prometheus.CounterVec
	alertsPublished   *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	sweepPagesScanned prometheus.Counter
	mutationQueueLag  prometheus.Histogram
}

// NewMetrics initializes and registers collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_http_errors_total",
			Help: "HTTP errors by path, method and error code.",
		}, []string{"path", "method", "code"}),
		breachesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_breaches_detected_total",
			Help: "Breach transitions by metric and alert level.",
		}, []string{"metric", "level"}),
		alertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_events_published_total",
			Help: "Engine events fanned out to the notification channel.",
		}, []string{"type"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_sweep_duration_seconds",
			Help:    "Duration of full breach sweep passes.",
			Buckets: prometheus.DefBuckets,
		}),
		sweepPagesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_sweep_pages_total",
			Help: "Pages scanned by the breach sweep.",
		}),
		mutationQueueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_mutation_queue_lag_seconds",
			Help:    "Time mutation events spend queued before a worker picks them up.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}

	registry.MustRegister(
		m.requestCount,
		m.errorCount,
		m.breachesDetected,
		m.alertsPublished,
		m.sweepDuration,
		m.sweepPagesScanned,
		m.mutationQueueLag,
	)
	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordBreach counts a breach transition.
func (m *Metrics) RecordBreach(metric, level string) {
	if m == nil {
		return
	}
	m.breachesDetected.WithLabelValues(metric, level).Inc()
}

// RecordEventPublished counts a fanned-out engine event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.alertsPublished.WithLabelValues(eventType).Inc()
}

// RecordSweep records one completed sweep pass.
func (m *Metrics) RecordSweep(duration time.Duration, pages int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepPagesScanned.Add(float64(pages))
}

// RecordQueueLag records how long a mutation event waited in its shard queue.
func (m *Metrics) RecordQueueLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.mutationQueueLag.Observe(lag.Seconds())
}
