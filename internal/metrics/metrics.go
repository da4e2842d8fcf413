// Package metrics exposes Prometheus collectors for bed allocation and the
// booking lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by every counter.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics bundles the collectors.  A nil *Metrics is valid and records
// nothing, which keeps tests and the CLI free of registry plumbing.
type Metrics struct {
	reg         *prometheus.Registry
	allocations *prometheus.CounterVec
	transitions *prometheus.CounterVec
	retries     *prometheus.CounterVec
	retryQueue  prometheus.Gauge
}

// New registers the collectors on a fresh registry that also carries the
// standard process and Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostel",
			Name:      "allocation_operations_total",
			Help:      "Bed allocation operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostel",
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by name and outcome.",
		}, []string{"transition", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostel",
			Name:      "release_retries_total",
			Help:      "Background bed release attempts by outcome.",
		}, []string{"outcome"}),
		retryQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostel",
			Name:      "release_retry_queue_depth",
			Help:      "Bed releases waiting for a background retry.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.allocations, m.transitions, m.retries, m.retryQueue,
	)
	return m
}

// Allocation counts one allocation operation.
func (m *Metrics) Allocation(op, outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(op, outcome).Inc()
}

// Transition counts one booking lifecycle transition.
func (m *Metrics) Transition(name, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name, outcome).Inc()
}

// Retry counts one background release attempt.
func (m *Metrics) Retry(outcome string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(outcome).Inc()
}

// RetryQueue records the retry backlog.
func (m *Metrics) RetryQueue(n int) {
	if m == nil {
		return
	}
	m.retryQueue.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
