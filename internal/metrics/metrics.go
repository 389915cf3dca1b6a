// Package metrics exposes Prometheus collectors for orchestration runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifepilot/internal/resource"
)

const namespace = "lifepilot"

// Metrics holds the process-wide collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Runs           prometheus.Counter
	RunDuration    prometheus.Histogram
	StageDegraded  *prometheus.CounterVec
	ModelCalls     *prometheus.CounterVec
	Lookups        *prometheus.CounterVec
	CalendarFailed prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs started.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full orchestration run.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80},
		}),
		StageDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_degraded_total",
			Help:      "Stages that fell back to their degraded output.",
		}, []string{"stage"}),
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Generative model calls by outcome.",
		}, []string{"outcome"}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_lookups_total",
			Help:      "Video lookups by outcome (hit or fallback).",
		}, []string{"outcome"}),
		CalendarFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_serialize_failures_total",
			Help:      "Runs whose calendar export could not be built.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Runs,
		m.RunDuration,
		m.StageDegraded,
		m.ModelCalls,
		m.Lookups,
		m.CalendarFailed,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RunStarted implements pipeline.Observer.
func (m *Metrics) RunStarted() { m.Runs.Inc() }

// RunFinished implements pipeline.Observer.
func (m *Metrics) RunFinished(d time.Duration, calendarOK bool) {
	m.RunDuration.Observe(d.Seconds())
	if !calendarOK {
		m.CalendarFailed.Inc()
	}
}

// StageDegradedTo implements pipeline.Observer.
func (m *Metrics) StageDegradedTo(stage string) { m.StageDegraded.WithLabelValues(stage).Inc() }

// ModelCall implements pipeline.Observer.
func (m *Metrics) ModelCall(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ModelCalls.WithLabelValues(outcome).Inc()
}

// LookupDone implements resource.Observer.
func (m *Metrics) LookupDone(o resource.Outcome) {
	m.Lookups.WithLabelValues(string(o)).Inc()
}
