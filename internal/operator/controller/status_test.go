package controller

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

var statusNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func allSteps() []string {
	return []string{stepDesired, stepCertificateAuthorities, stepLeafCertificates, stepResources, stepStorage}
}

func TestPhaseFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		ready bool
		want  v1alpha1.ClusterPhase
	}{
		{"ready", nil, true, v1alpha1.ClusterPhaseReady},
		{"replicas pending", nil, false, v1alpha1.ClusterPhaseNotReady},
		{"invalid spec", fmt.Errorf("failed to computeDesired: %w", retry.Configurationf("bad")), false, v1alpha1.ClusterPhaseFailed},
		{"transient", retry.Transientf("conflict"), true, v1alpha1.ClusterPhaseNotReady},
		{"fatal", errors.New("boom"), true, v1alpha1.ClusterPhaseNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, phaseFor(tt.err, tt.ready))
		})
	}
}

func TestRolesReady(t *testing.T) {
	t.Parallel()

	assert.True(t, rolesReady(v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 3}))
	assert.False(t, rolesReady(v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 2}))
	assert.False(t, rolesReady(v1alpha1.RoleStatus{}), "a role without replicas is never ready")
	assert.False(t, rolesReady(v1alpha1.RoleStatus{Replicas: 1, ReadyReplicas: 1}, v1alpha1.RoleStatus{Replicas: 3}))
}

func TestApplyStatus_Success(t *testing.T) {
	t.Parallel()

	st := &v1alpha1.KafkaClusterStatus{LastFailedStep: "kafka/workload"}
	applyStatus(st, ReconciliationStatus{
		Generation:          4,
		Phase:               v1alpha1.ClusterPhaseReady,
		Completed:           allSteps(),
		Kafka:               v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 3},
		Zookeeper:           v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 3},
		Listeners:           []v1alpha1.ListenerStatus{{Name: "plain", Type: v1alpha1.ListenerTypeInternal, BootstrapServers: "c-kafka-bootstrap.kafka.svc:9092"}},
		ClusterCAGeneration: 2,
		ClientsCAGeneration: 1,
	}, statusNow)

	assert.Equal(t, v1alpha1.ClusterPhaseReady, st.Phase)
	assert.Equal(t, int64(4), st.ObservedGeneration)
	assert.Empty(t, st.LastFailedStep, "a successful pass clears the failed step")
	assert.Equal(t, int64(2), st.ClusterCAGeneration)
	assert.Equal(t, int64(1), st.ClientsCAGeneration)
	assert.Len(t, st.Listeners, 1)
	require.NotNil(t, st.LastReconcileTime)
	assert.True(t, st.LastReconcileTime.Time.Equal(statusNow))

	for _, cond := range []string{v1alpha1.ConditionReady, v1alpha1.ConditionCertificatesReady, v1alpha1.ConditionResourcesReady, v1alpha1.ConditionWorkloadsReady} {
		c := meta.FindStatusCondition(st.Conditions, cond)
		require.NotNil(t, c, cond)
		assert.Equal(t, metav1.ConditionTrue, c.Status, cond)
		assert.Equal(t, int64(4), c.ObservedGeneration, cond)
	}
}

func TestApplyStatus_FailureKeepsEarlierCAGenerations(t *testing.T) {
	t.Parallel()

	st := &v1alpha1.KafkaClusterStatus{ClusterCAGeneration: 3, ClientsCAGeneration: 1}
	err := fmt.Errorf("failed to reconcileCAs: %w", errors.New("secret unreadable"))
	applyStatus(st, ReconciliationStatus{
		Generation: 2,
		Phase:      v1alpha1.ClusterPhaseNotReady,
		FailedStep: stepCertificateAuthorities,
		Err:        err,
		Completed:  []string{stepDesired},
	}, statusNow)

	assert.Equal(t, int64(3), st.ClusterCAGeneration)
	assert.Equal(t, int64(1), st.ClientsCAGeneration)
	assert.Equal(t, stepCertificateAuthorities, st.LastFailedStep)
	assert.Contains(t, st.Message, "step reconcileCAs failed")

	certsCond := meta.FindStatusCondition(st.Conditions, v1alpha1.ConditionCertificatesReady)
	require.NotNil(t, certsCond)
	assert.Equal(t, reasonReconcileFailed, certsCond.Reason)

	resourcesCond := meta.FindStatusCondition(st.Conditions, v1alpha1.ConditionResourcesReady)
	require.NotNil(t, resourcesCond)
	assert.Equal(t, reasonNotReached, resourcesCond.Reason)

	ready := meta.FindStatusCondition(st.Conditions, v1alpha1.ConditionReady)
	require.NotNil(t, ready)
	assert.Equal(t, metav1.ConditionFalse, ready.Status)
	assert.Equal(t, reasonReconcileFailed, ready.Reason)
}

func TestApplyStatus_ReplicasNotReady(t *testing.T) {
	t.Parallel()

	st := &v1alpha1.KafkaClusterStatus{}
	applyStatus(st, ReconciliationStatus{
		Generation: 1,
		Phase:      v1alpha1.ClusterPhaseNotReady,
		Completed:  allSteps(),
		Kafka:      v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 1},
		Zookeeper:  v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 3},
	}, statusNow)

	assert.Equal(t, "kafka 1/3 ready, zookeeper 3/3 ready", st.Message)
	workloads := meta.FindStatusCondition(st.Conditions, v1alpha1.ConditionWorkloadsReady)
	require.NotNil(t, workloads)
	assert.Equal(t, metav1.ConditionFalse, workloads.Status)
	assert.Equal(t, reasonReplicasNotReady, workloads.Reason)
	assert.True(t, meta.IsStatusConditionTrue(st.Conditions, v1alpha1.ConditionResourcesReady))
}

func TestApplyStatus_PausedOnlyTouchesReady(t *testing.T) {
	t.Parallel()

	st := &v1alpha1.KafkaClusterStatus{
		Kafka:          v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 3},
		LastFailedStep: "kafka/scale",
	}
	applyStatus(st, ReconciliationStatus{Generation: 5, Phase: v1alpha1.ClusterPhasePaused}, statusNow)

	assert.Equal(t, v1alpha1.ClusterPhasePaused, st.Phase)
	assert.Equal(t, int64(5), st.ObservedGeneration)
	assert.Equal(t, v1alpha1.RoleStatus{Replicas: 3, ReadyReplicas: 3}, st.Kafka)
	assert.Equal(t, "kafka/scale", st.LastFailedStep)
	require.Len(t, st.Conditions, 1)
	assert.Equal(t, reasonPaused, st.Conditions[0].Reason)
}

func TestReconciliationStatus_Helpers(t *testing.T) {
	t.Parallel()

	s := ReconciliationStatus{
		Phase: v1alpha1.ClusterPhaseReady,
		Results: []ResourceResult{
			{Kind: "Service", Name: "a"},
			{Kind: "Secret", Name: "b"},
			{Kind: "Service", Name: "c"},
		},
	}
	assert.True(t, s.Succeeded())
	assert.Len(t, s.ResultsFor("Service"), 2)
	assert.Empty(t, s.ResultsFor("Deployment"))

	s.Err = errors.New("boom")
	assert.False(t, s.Succeeded())
	assert.False(t, ReconciliationStatus{Phase: v1alpha1.ClusterPhasePaused}.Succeeded())
}
