// Package metrics exposes Prometheus collectors for HTTP traffic and
// authentication outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors and the registry they live in.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	OutcomesTotal   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userauth_http_requests_total",
				Help: "Total number of HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "userauth_http_request_duration_seconds",
				Help:    "HTTP request latency by method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		OutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userauth_operation_outcomes_total",
				Help: "Total number of auth and account operations by result",
			},
			[]string{"operation", "result"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.OutcomesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordOutcome counts one operation result, e.g. ("login", "authentication").
func (m *Metrics) RecordOutcome(operation, result string) {
	m.OutcomesTotal.WithLabelValues(operation, result).Inc()
}

// ObserveRequest records a finished HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
