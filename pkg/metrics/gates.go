package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GateMetrics records decision outcomes and latency per guardrail gate.
type GateMetrics struct {
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	simRuns   prometheus.Histogram
}

// NewGateMetrics registers the gate metrics on the provided registerer.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	if reg == nil {
		return &GateMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_decisions_total",
		Help: "Gate decisions by gate and action.",
	}, []string{"gate", "action"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gate_evaluation_seconds",
		Help:    "Latency of gate evaluations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gate"})
	simRuns := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cost_simulation_runs",
		Help:    "Iteration counts of cost simulations.",
		Buckets: []float64{100, 500, 1000, 5000, 10000, 20000},
	})
	reg.MustRegister(decisions, latency, simRuns)
	return &GateMetrics{
		decisions: decisions,
		latency:   latency,
		simRuns:   simRuns,
	}
}

// IncDecision increments the decision counter for the gate/action pair.
func (g *GateMetrics) IncDecision(gate, action string) {
	if g == nil || g.decisions == nil {
		return
	}
	g.decisions.WithLabelValues(normalizeLabel(gate), normalizeLabel(action)).Inc()
}

// ObserveLatency records how long a gate evaluation took.
func (g *GateMetrics) ObserveLatency(gate string, duration time.Duration) {
	if g == nil || g.latency == nil {
		return
	}
	g.latency.WithLabelValues(normalizeLabel(gate)).Observe(duration.Seconds())
}

// ObserveSimulationRuns records the iteration count of a simulation.
func (g *GateMetrics) ObserveSimulationRuns(runs int) {
	if g == nil || g.simRuns == nil {
		return
	}
	g.simRuns.Observe(float64(runs))
}

// OutboxMetrics counts publisher outcomes.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewOutboxMetrics registers outbox publisher metrics.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published by topic.",
	}, []string{"topic"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Outbox publish failures by topic.",
	}, []string{"topic"})
	reg.MustRegister(published, failed)
	return &OutboxMetrics{published: published, failed: failed}
}

// IncPublished increments the published counter for the topic.
func (o *OutboxMetrics) IncPublished(topic string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(topic)).Inc()
}

// IncFailed increments the failure counter for the topic.
func (o *OutboxMetrics) IncFailed(topic string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(topic)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
