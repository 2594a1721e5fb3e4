package controller

import (
	"context"
	"fmt"
	"slices"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	k8sretry "k8s.io/client-go/util/retry"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/operator/rolling"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// Condition reasons
const (
	reasonReconciled           = "Reconciled"
	reasonReplicasNotReady     = "ReplicasNotReady"
	reasonReconcileFailed      = "ReconcileFailed"
	reasonInvalidConfiguration = "InvalidConfiguration"
	reasonNotReached           = "NotReached"
	reasonPaused               = "Paused"
)

// ResourceResult is the outcome of reconciling one resource during a pass.
type ResourceResult struct {
	Kind string
	Name string
	Type resource.ResultType
}

// ReconciliationStatus is the outcome of one reconciliation pass. On failure
// it carries the first error, the step that raised it, and everything
// recorded before that.
type ReconciliationStatus struct {
	ReconciliationID string
	Cluster          types.NamespacedName
	Generation       int64

	Phase      v1alpha1.ClusterPhase
	FailedStep string
	Err        error

	// Completed lists the steps that finished, in order.
	Completed []string
	Results   []ResourceResult
	Decisions map[string]rolling.Decision
	// Quiesced lists the roles whose quiescence was awaited.
	Quiesced []string

	Kafka     v1alpha1.RoleStatus
	Zookeeper v1alpha1.RoleStatus
	Listeners []v1alpha1.ListenerStatus

	ClusterCAGeneration int64
	ClientsCAGeneration int64
	CAOutcomes          map[string]certs.Outcome

	// Published is set once the status reached the cluster object.
	Published bool
}

// Succeeded reports whether the pass ran every step.
func (s ReconciliationStatus) Succeeded() bool {
	return s.Err == nil && s.Phase != v1alpha1.ClusterPhasePaused && s.Phase != ""
}

// ResultsFor returns the recorded results of one resource kind.
func (s ReconciliationStatus) ResultsFor(kind string) []ResourceResult {
	var out []ResourceResult
	for _, r := range s.Results {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (s ReconciliationStatus) completed(steps ...string) bool {
	for _, step := range steps {
		if !slices.Contains(s.Completed, step) {
			return false
		}
	}
	return true
}

// phaseFor maps the outcome of a pass onto a cluster phase.
func phaseFor(err error, ready bool) v1alpha1.ClusterPhase {
	switch {
	case err == nil && ready:
		return v1alpha1.ClusterPhaseReady
	case err == nil:
		return v1alpha1.ClusterPhaseNotReady
	case retry.IsConfiguration(err):
		return v1alpha1.ClusterPhaseFailed
	default:
		return v1alpha1.ClusterPhaseNotReady
	}
}

// applyStatus writes s onto the cluster status at now.
func applyStatus(st *v1alpha1.KafkaClusterStatus, s ReconciliationStatus, now time.Time) {
	ts := metav1.NewTime(now)
	st.Phase = s.Phase
	st.ObservedGeneration = s.Generation
	st.LastReconcileTime = &ts

	setCondition := func(condType string, ok bool, reason, message string) {
		status := metav1.ConditionFalse
		if ok {
			status = metav1.ConditionTrue
		}
		meta.SetStatusCondition(&st.Conditions, metav1.Condition{
			Type:               condType,
			Status:             status,
			ObservedGeneration: s.Generation,
			LastTransitionTime: ts,
			Reason:             reason,
			Message:            message,
		})
	}

	if s.Phase == v1alpha1.ClusterPhasePaused {
		st.Message = "reconciliation is paused"
		setCondition(v1alpha1.ConditionReady, false, reasonPaused, st.Message)
		return
	}

	st.LastFailedStep = s.FailedStep
	st.Kafka = s.Kafka
	st.Zookeeper = s.Zookeeper
	if s.Listeners != nil {
		st.Listeners = s.Listeners
	}
	if s.completed(stepCertificateAuthorities) {
		st.ClusterCAGeneration = s.ClusterCAGeneration
		st.ClientsCAGeneration = s.ClientsCAGeneration
	}

	failReason := reasonReconcileFailed
	if retry.IsConfiguration(s.Err) {
		failReason = reasonInvalidConfiguration
	}
	stepCondition := func(condType string, steps ...string) {
		if s.completed(steps...) {
			setCondition(condType, true, reasonReconciled, "")
			return
		}
		reason := reasonNotReached
		if slices.Contains(steps, s.FailedStep) {
			reason = failReason
		}
		setCondition(condType, false, reason, fmt.Sprintf("not reconciled in the last attempt (failed step %q)", s.FailedStep))
	}
	stepCondition(v1alpha1.ConditionCertificatesReady, stepCertificateAuthorities, stepLeafCertificates)
	stepCondition(v1alpha1.ConditionResourcesReady, stepResources, stepStorage)

	ready := s.Phase == v1alpha1.ClusterPhaseReady
	replicas := fmt.Sprintf("kafka %d/%d ready, zookeeper %d/%d ready",
		s.Kafka.ReadyReplicas, s.Kafka.Replicas, s.Zookeeper.ReadyReplicas, s.Zookeeper.Replicas)
	workloadsReady := s.Err == nil && rolesReady(s.Kafka, s.Zookeeper)
	if workloadsReady {
		setCondition(v1alpha1.ConditionWorkloadsReady, true, reasonReconciled, replicas)
	} else {
		setCondition(v1alpha1.ConditionWorkloadsReady, false, reasonReplicasNotReady, replicas)
	}

	switch {
	case s.Err != nil:
		st.Message = fmt.Sprintf("step %s failed: %v", s.FailedStep, s.Err)
		setCondition(v1alpha1.ConditionReady, false, failReason, st.Message)
	case ready:
		st.Message = replicas
		setCondition(v1alpha1.ConditionReady, true, reasonReconciled, st.Message)
	default:
		st.Message = replicas
		setCondition(v1alpha1.ConditionReady, false, reasonReplicasNotReady, st.Message)
	}
}

func rolesReady(roles ...v1alpha1.RoleStatus) bool {
	for _, r := range roles {
		if r.Replicas == 0 || r.ReadyReplicas < r.Replicas {
			return false
		}
	}
	return true
}

// statusBackoff bounds the conflict retries of a single status write.
var statusBackoff = wait.Backoff{
	Steps:    5,
	Duration: 10 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// statusWriter publishes ReconciliationStatus onto the cluster's status
// subresource.
type statusWriter struct {
	client  client.Client
	clock   clock.PassiveClock
	backoff wait.Backoff
}

// NewStatusWriter creates a StatusPublisher that patches /status through c.
func NewStatusWriter(c client.Client, clk clock.PassiveClock) StatusPublisher {
	return &statusWriter{client: c, clock: clk, backoff: statusBackoff}
}

// Publish re-reads the cluster and merge-patches its status under optimistic
// lock, retrying the write on conflict. A deleted cluster is not an error.
func (w *statusWriter) Publish(ctx context.Context, cluster *v1alpha1.KafkaCluster, status ReconciliationStatus) error {
	key := client.ObjectKeyFromObject(cluster)
	err := k8sretry.OnError(w.backoff, apierrors.IsConflict, func() error {
		live := &v1alpha1.KafkaCluster{}
		if err := w.client.Get(ctx, key, live); err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}
			return err
		}
		patched := live.DeepCopy()
		applyStatus(&patched.Status, status, w.clock.Now())
		return w.client.Status().Patch(ctx, patched, client.MergeFromWithOptions(live, client.MergeFromWithOptimisticLock{}))
	})
	if err != nil {
		return fmt.Errorf("failed to publish status of %s: %w", key, resource.ClassifyAPIError(err))
	}
	return nil
}
