package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Reconciliation metrics
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka_operator",
			Name:      "reconcile_total",
			Help:      "Total number of reconciliation passes by result",
		},
		[]string{"cluster", "result"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kafka_operator",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of a reconciliation pass in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"cluster"},
	)

	reconcileAllTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka_operator",
			Name:      "reconcile_all_total",
			Help:      "Total number of full reconciliations by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	// Resource metrics
	resourceReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka_operator",
			Name:      "resource_reconcile_total",
			Help:      "Total number of single resource reconciliations by kind and result",
		},
		[]string{"kind", "result"},
	)

	rollingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka_operator",
			Name:      "rolling_decisions_total",
			Help:      "Total number of workload classifications by role and decision",
		},
		[]string{"role", "decision"},
	)

	// Cluster metrics
	caGeneration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kafka_operator",
			Name:      "ca_generation",
			Help:      "Current key generation of each certificate authority",
		},
		[]string{"cluster", "ca"},
	)

	replicas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kafka_operator",
			Name:      "replicas",
			Help:      "Desired and ready replicas by role",
		},
		[]string{"cluster", "role", "state"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		reconcileTotal,
		reconcileDuration,
		reconcileAllTotal,
		resourceReconcileTotal,
		rollingDecisionsTotal,
		caGeneration,
		replicas,
	)
}

func recordReconcileMetric(cluster, result string, duration float64) {
	reconcileTotal.WithLabelValues(cluster, result).Inc()
	reconcileDuration.WithLabelValues(cluster).Observe(duration)
}

func recordReconcileAllMetric(trigger, result string) {
	reconcileAllTotal.WithLabelValues(trigger, result).Inc()
}

func recordResourceMetric(kind, result string) {
	resourceReconcileTotal.WithLabelValues(kind, result).Inc()
}

func recordRollingDecisionMetric(role, decision string) {
	rollingDecisionsTotal.WithLabelValues(role, decision).Inc()
}

func recordCAGenerationMetric(cluster, ca string, generation int64) {
	caGeneration.WithLabelValues(cluster, ca).Set(float64(generation))
}

func recordReplicasMetric(cluster, role string, desired, ready int32) {
	replicas.WithLabelValues(cluster, role, "desired").Set(float64(desired))
	replicas.WithLabelValues(cluster, role, "ready").Set(float64(ready))
}

// Metrics helper methods that check enableMetrics before recording.

func (r *ClusterReconciler) recordReconcile(cluster, result string, duration float64) {
	if r.enableMetrics {
		recordReconcileMetric(cluster, result, duration)
	}
}

func (r *ClusterReconciler) recordReconcileAll(trigger, result string) {
	if r.enableMetrics {
		recordReconcileAllMetric(trigger, result)
	}
}

func (r *ClusterReconciler) recordResource(kind, result string) {
	if r.enableMetrics {
		recordResourceMetric(kind, result)
	}
}

func (r *ClusterReconciler) recordRollingDecision(role, decision string) {
	if r.enableMetrics {
		recordRollingDecisionMetric(role, decision)
	}
}

func (r *ClusterReconciler) recordCAGeneration(cluster, ca string, generation int64) {
	if r.enableMetrics {
		recordCAGenerationMetric(cluster, ca, generation)
	}
}

func (r *ClusterReconciler) recordReplicas(cluster, role string, desired, ready int32) {
	if r.enableMetrics {
		recordReplicasMetric(cluster, role, desired, ready)
	}
}
