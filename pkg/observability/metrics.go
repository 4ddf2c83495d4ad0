// Package observability provides Prometheus metrics for the diagnostic
// client: request latencies, tool-call outcomes, transport events, and
// launched-process counts.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records what the client does. A nil *Metrics is valid and records
// nothing, so callers never need to guard.
type Metrics struct {
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	transportEvents  *prometheus.CounterVec
	launchDuration   prometheus.Histogram
	activeProcesses  prometheus.Gauge
	errorTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers the metric set. A nil registerer falls
// back to the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "mcpdoctor"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of JSON-RPC requests by method and transport.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "transport"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method, transport and status.",
		}, []string{"method", "transport", "status"}),
		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Latency of tool invocations by tool name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		transportEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_events_total",
			Help:      "Transport lifecycle events (connect, reconnect, close).",
		}, []string{"transport", "event"}),
		launchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_duration_seconds",
			Help:      "Time from process start to discovered server address.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		activeProcesses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_processes",
			Help:      "Server processes currently managed by the client.",
		}),
		errorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by category.",
		}, []string{"category"}),
	}

	reg.MustRegister(
		m.requestDuration,
		m.requestTotal,
		m.toolCallDuration,
		m.transportEvents,
		m.launchDuration,
		m.activeProcesses,
		m.errorTotal,
	)
	return m
}

// RecordRequest records one JSON-RPC request.
func (m *Metrics) RecordRequest(method, transport, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, transport).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, transport, status).Inc()
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCallDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// RecordTransportEvent counts a transport lifecycle event.
func (m *Metrics) RecordTransportEvent(transport, event string) {
	if m == nil {
		return
	}
	m.transportEvents.WithLabelValues(transport, event).Inc()
}

// RecordLaunch records a successful server launch.
func (m *Metrics) RecordLaunch(duration time.Duration) {
	if m == nil {
		return
	}
	m.launchDuration.Observe(duration.Seconds())
}

// ProcessStarted bumps the active process gauge.
func (m *Metrics) ProcessStarted() {
	if m == nil {
		return
	}
	m.activeProcesses.Inc()
}

// ProcessStopped drops the active process gauge.
func (m *Metrics) ProcessStopped() {
	if m == nil {
		return
	}
	m.activeProcesses.Dec()
}

// RecordError counts an error by its category.
func (m *Metrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(category).Inc()
}
