// Package metrics provides Prometheus instrumentation for the dynamic
// spawn scheduler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics collects Prometheus metrics for DynamicSpawnStrategy
// execution, all namespaced "dynexec".
//
// Metrics exposed:
//
//  1. inflight_branches (gauge, labels: mode) — branches of the given
//     mode currently executing.
//  2. branch_latency_ms (histogram, labels: mode, outcome) — branch
//     wall-clock duration; outcome is "won", "lost", or "error".
//  3. cancellations_total (counter, labels: cancelled_mode) — branches
//     that received stop_branch.
//  4. permit_denied_total (counter) — spawns forced remote-only by CPU
//     permit saturation.
//  5. protocol_violations_total (counter) — ProtocolViolation assertions
//     tripped (should remain zero in a healthy system).
type SchedulerMetrics struct {
	inflightBranches  *prometheus.GaugeVec
	branchLatency     *prometheus.HistogramVec
	cancellations     *prometheus.CounterVec
	permitDenied      prometheus.Counter
	protocolViolation prometheus.Counter

	enabled bool
}

// New creates and registers all scheduler metrics with registry (the
// global prometheus.DefaultRegisterer if nil).
func New(registry prometheus.Registerer) *SchedulerMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &SchedulerMetrics{
		enabled: true,
		inflightBranches: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dynexec",
			Name:      "inflight_branches",
			Help:      "Number of branches currently executing, by mode",
		}, []string{"mode"}),
		branchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dynexec",
			Name:      "branch_latency_ms",
			Help:      "Branch execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"mode", "outcome"}),
		cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dynexec",
			Name:      "cancellations_total",
			Help:      "Branches cancelled via stop_branch, by the cancelled branch's mode",
		}, []string{"cancelled_mode"}),
		permitDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dynexec",
			Name:      "permit_denied_total",
			Help:      "Spawns forced to remote-only execution because the CPU permit pool was saturated",
		}),
		protocolViolation: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dynexec",
			Name:      "protocol_violations_total",
			Help:      "ProtocolViolation assertions tripped; should remain zero",
		}),
	}
}

// IncInflight increments the inflight-branch gauge for mode.
func (m *SchedulerMetrics) IncInflight(mode string) {
	if !m.enabled {
		return
	}
	m.inflightBranches.WithLabelValues(mode).Inc()
}

// DecInflight decrements the inflight-branch gauge for mode.
func (m *SchedulerMetrics) DecInflight(mode string) {
	if !m.enabled {
		return
	}
	m.inflightBranches.WithLabelValues(mode).Dec()
}

// RecordBranchLatency records how long a branch of the given mode ran,
// and how it concluded ("won", "lost", or "error").
func (m *SchedulerMetrics) RecordBranchLatency(mode, outcome string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.branchLatency.WithLabelValues(mode, outcome).Observe(float64(d.Milliseconds()))
}

// IncCancellations increments the cancellation counter for the branch
// mode that was cancelled.
func (m *SchedulerMetrics) IncCancellations(cancelledMode string) {
	if !m.enabled {
		return
	}
	m.cancellations.WithLabelValues(cancelledMode).Inc()
}

// IncPermitDenied increments the CPU-permit-saturation counter.
func (m *SchedulerMetrics) IncPermitDenied() {
	if !m.enabled {
		return
	}
	m.permitDenied.Inc()
}

// IncProtocolViolation increments the protocol-violation counter.
func (m *SchedulerMetrics) IncProtocolViolation() {
	if !m.enabled {
		return
	}
	m.protocolViolation.Inc()
}
