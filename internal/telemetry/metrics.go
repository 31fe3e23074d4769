package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors. The capability Registry, BT
// executor and coordinator update theirs; ScenarioNodes, BeliefEntropy and
// TaskTTLExpirations are registered but nothing in this module observes
// them.
type Metrics struct {
	LeafExecutions     *prometheus.CounterVec
	NodeExecutions     *prometheus.CounterVec
	ShadowRuns         *prometheus.CounterVec
	ShadowSuccessRate  *prometheus.GaugeVec
	ActivePlans        prometheus.Gauge
	ScenarioNodes      prometheus.Histogram
	BeliefEntropy      prometheus.Histogram
	TaskTTLExpirations *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics bundle against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LeafExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_leaf_executions_total",
			Help: "Count of primitive leaf executions by leaf name and status.",
		}, []string{"leaf", "status"}),
		NodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_bt_node_executions_total",
			Help: "Count of behavior-tree node evaluations by node kind and status.",
		}, []string{"kind", "status"}),
		ShadowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_shadow_runs_total",
			Help: "Count of capability shadow runs by option id and status.",
		}, []string{"option", "status"}),
		ShadowSuccessRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wayfinder_shadow_success_rate",
			Help: "Current success rate for a shadow option.",
		}, []string{"option"}),
		ActivePlans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wayfinder_active_plans",
			Help: "Number of plans currently registered in activePlans.",
		}),
		ScenarioNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wayfinder_p10_scenario_nodes",
			Help:    "Number of nodes expanded per risk scenario search.",
			Buckets: prometheus.LinearBuckets(0, 30, 10),
		}),
		BeliefEntropy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wayfinder_p11_belief_entropy",
			Help:    "Belief-state entropy observed after each belief update.",
			Buckets: prometheus.LinearBuckets(0, 0.5, 10),
		}),
		TaskTTLExpirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfinder_task_ttl_expirations_total",
			Help: "Count of tasks auto-failed by blocked-task TTL, by blockedReason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.LeafExecutions,
		m.NodeExecutions,
		m.ShadowRuns,
		m.ShadowSuccessRate,
		m.ActivePlans,
		m.ScenarioNodes,
		m.BeliefEntropy,
		m.TaskTTLExpirations,
	)
	return m
}
