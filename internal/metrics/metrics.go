// Package metrics exposes Prometheus collectors for the monitoring sweeps.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcomes.
const (
	OutcomeCreated    = "created"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)

// Sweep outcomes.
const (
	SweepSucceeded = "succeeded"
	SweepPanicked  = "panicked"
	SweepSkipped   = "skipped"
	SweepFailed    = "failed"
)

// Registry holds every finwatch collector plus the Go runtime and process
// collectors. It is served by Handler.
var Registry = prometheus.NewRegistry()

var (
	SweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finwatch_sweeps_total",
		Help: "Sweeps run, by kind and outcome.",
	}, []string{"kind", "outcome"})

	SweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finwatch_sweep_duration_seconds",
		Help:    "Wall time of a full sweep.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"kind"})

	EntityFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finwatch_entity_failures_total",
		Help: "Entities skipped during a sweep because evaluating them failed.",
	}, []string{"kind"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finwatch_notifications_total",
		Help: "Notification attempts, by type and outcome.",
	}, []string{"type", "outcome"})

	RecurringTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finwatch_recurring_transitions_total",
		Help: "Recurring expense state changes (advanced, deactivated, materialized).",
	}, []string{"transition"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SweepsTotal,
		SweepDuration,
		EntityFailures,
		NotificationsTotal,
		RecurringTransitions,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
