// Package telemetry exposes Prometheus metrics for operation dispatch and
// the outbound mail queue.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "opsgate"

// Metrics holds the collectors on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	mailSent   *prometheus.CounterVec
	mailFailed *prometheus.CounterVec
	queueLen   prometheus.Gauge
	reloads    *prometheus.CounterVec
}

// New creates and registers all metrics, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Dispatched operations by identifier and outcome kind.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from request to response, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		mailSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_sent_total",
			Help:      "Emails delivered, by profile.",
		}, []string{"profile"}),
		mailFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_failed_total",
			Help:      "Email delivery failures, by profile (empty when unroutable).",
		}, []string{"profile"}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mail_queue_length",
			Help:      "Emails currently queued.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.mailSent,
		m.mailFailed,
		m.queueLen,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDispatch records one dispatched operation. outcome is "ok" or an
// error kind name.
func (m *Metrics) ObserveDispatch(operation, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveReload records a configuration reload
func (m *Metrics) ObserveReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Sent implements mailqueue.Observer
func (m *Metrics) Sent(profile string) {
	m.mailSent.WithLabelValues(profile).Inc()
}

// Failed implements mailqueue.Observer
func (m *Metrics) Failed(profile string) {
	m.mailFailed.WithLabelValues(profile).Inc()
}

// Length implements mailqueue.Observer
func (m *Metrics) Length(n int) {
	m.queueLen.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
