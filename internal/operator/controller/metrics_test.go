package controller

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Metric tests share package level collectors and do not run in parallel.

func TestRecordReconcileMetric(t *testing.T) {
	reconcileTotal.Reset()
	reconcileDuration.Reset()

	recordReconcileMetric("c", "success", 1.5)
	recordReconcileMetric("c", "success", 0.5)
	recordReconcileMetric("c", "error", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(reconcileTotal.WithLabelValues("c", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reconcileTotal.WithLabelValues("c", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(reconcileDuration))
}

func TestRecordReplicasMetric(t *testing.T) {
	replicas.Reset()

	recordReplicasMetric("c", "kafka", 3, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(replicas.WithLabelValues("c", "kafka", "desired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(replicas.WithLabelValues("c", "kafka", "ready")))
}

func TestRecordCAGenerationMetric(t *testing.T) {
	caGeneration.Reset()

	recordCAGenerationMetric("c", clusterCAName, 4)

	assert.Equal(t, 4.0, testutil.ToFloat64(caGeneration.WithLabelValues("c", clusterCAName)))
}

func TestReconcilerMetricsCanBeDisabled(t *testing.T) {
	resourceReconcileTotal.Reset()
	rollingDecisionsTotal.Reset()
	reconcileAllTotal.Reset()

	disabled := &ClusterReconciler{enableMetrics: false}
	disabled.recordResource("Secret", "Created")
	disabled.recordRollingDecision("kafka", "NoOp")
	disabled.recordReconcileAll(TriggerTimer, "success")
	assert.Equal(t, 0, testutil.CollectAndCount(resourceReconcileTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(rollingDecisionsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(reconcileAllTotal))

	enabled := &ClusterReconciler{enableMetrics: true}
	enabled.recordResource("Secret", "Created")
	enabled.recordRollingDecision("kafka", "NoOp")
	enabled.recordReconcileAll(TriggerTimer, "success")
	assert.Equal(t, 1.0, testutil.ToFloat64(resourceReconcileTotal.WithLabelValues("Secret", "Created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rollingDecisionsTotal.WithLabelValues("kafka", "NoOp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reconcileAllTotal.WithLabelValues(TriggerTimer, "success")))
}
