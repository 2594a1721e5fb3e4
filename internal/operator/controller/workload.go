package controller

import (
	"context"
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/model"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/operator/rolling"
	"github.com/imamik/kafka-operator/internal/operator/scaling"
	"github.com/imamik/kafka-operator/internal/util/naming"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// revisionLabel is set on StatefulSet pods by the StatefulSet controller.
const revisionLabel = "controller-revision-hash"

// reconcileWorkload classifies the change to the role's StatefulSet and
// applies it. The replica count of a live StatefulSet is left to scale.
func (s *reconciliationState) reconcileWorkload(ctx context.Context, comp *model.Component) error {
	rs := s.roles[comp.Role]

	live, err := s.r.stores.StatefulSets.Get(ctx, s.cluster.Namespace, comp.Name())
	if err != nil {
		return err
	}
	rs.decision = rolling.Classify(live, comp.StatefulSet)
	s.mu.Lock()
	s.decisions[comp.Role] = rs.decision
	s.mu.Unlock()
	s.r.recordRollingDecision(comp.Role, rs.decision.Type.String())
	if rs.decision.Type != rolling.NoOp {
		s.logger.Info("workload changed", "decision", rs.decision.Type.String(), "reasons", rs.decision.Reasons)
	}

	res, err := reconcileOne(ctx, s, s.r.stores.StatefulSets, "StatefulSet", comp.Name(), comp.StatefulSet)
	if err != nil {
		return err
	}
	rs.created = res.Type == resource.Created
	rs.live = live
	if res.Object != nil {
		rs.live = res.Object
	}
	rs.current = resource.Replicas(rs.live)
	return nil
}

// rollingRestart restarts pods one at a time, waiting for each replacement
// to become ready before moving on. All pods restart when the workload
// change requires it. Otherwise only pods still running an outdated
// revision restart, which resumes a restart an earlier pass left unfinished.
func (s *reconciliationState) rollingRestart(ctx context.Context, comp *model.Component) error {
	rs := s.roles[comp.Role]
	if rs.created || rs.live == nil {
		return nil
	}
	all := rs.decision.Type == rolling.RollingRequired
	updateRevision := rs.live.Status.UpdateRevision

	pods := s.r.stores.Pods
	ns := s.cluster.Namespace
	restarted := 0
	// Pods at or above the target are removed by the scale step.
	for i := int32(0); i < min(rs.current, rs.target); i++ {
		name := comp.PodName(i)
		pod, err := pods.Get(ctx, ns, name)
		if err != nil {
			return err
		}
		if pod == nil {
			continue
		}
		if !all && (updateRevision == "" || pod.Labels[revisionLabel] == updateRevision) {
			continue
		}

		s.logger.Info("restarting pod", "pod", name)
		uid, err := pods.Restart(ctx, ns, name)
		if err != nil {
			return err
		}
		if err := pods.WaitForReady(ctx, ns, name, uid, s.r.config.OperationTimeout); err != nil {
			return fmt.Errorf("pod %s did not become ready after restart: %w", name, err)
		}
		restarted++
	}

	rs.rolled = all || restarted > 0
	if restarted > 0 {
		reasons := strings.Join(rs.decision.Reasons, ", ")
		if reasons == "" {
			reasons = "outdated revision"
		}
		s.r.Recorder.Eventf(s.cluster, corev1.EventTypeNormal, EventReasonRollingRestart,
			"Restarted %d %s pods (%s)", restarted, comp.Role, reasons)
	}
	return nil
}

// scale moves the role from its live replica count to the desired one.
func (s *reconciliationState) scale(ctx context.Context, comp *model.Component) error {
	rs := s.roles[comp.Role]
	if rs.current == rs.target {
		return nil
	}

	coordinator := scaling.NewCoordinator(s.r.stores.StatefulSets, s.r.readiness, s.r.config.OperationTimeout)
	steps, err := coordinator.Scale(ctx, s.cluster.Namespace, comp.Name(), rs.current, rs.target, s.dependents(comp))
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}

	rs.scaled = true
	reason := EventReasonScaledUp
	if rs.target < rs.current {
		reason = EventReasonScaledDown
		if err := s.pruneLeafCerts(ctx, comp); err != nil {
			return err
		}
	}
	s.r.Recorder.Eventf(s.cluster, corev1.EventTypeNormal, reason,
		"Scaled %s from %d to %d replicas", comp.Role, rs.current, rs.target)
	rs.current = rs.target
	return nil
}

// dependents reconciles the per-replica resources of added or removed
// replicas. Data claims of removed replicas are deleted only when the
// storage asks for it.
func (s *reconciliationState) dependents(comp *model.Component) scaling.DependentsFunc {
	return func(ctx context.Context, indices []int32, removed bool) error {
		for _, i := range indices {
			for _, svc := range comp.ReplicaServices(i) {
				desired := svc
				if removed {
					desired = nil
				}
				if _, err := reconcileOne(ctx, s, s.r.stores.Services, "Service", svc.Name, desired); err != nil {
					return err
				}
			}
			if removed && comp.Storage.Type == v1alpha1.StorageTypePersistentClaim && comp.Storage.DeleteClaim {
				if _, err := reconcileOne(ctx, s, s.r.stores.ClaimPruner, "PersistentVolumeClaim", comp.ClaimName(i), (*corev1.PersistentVolumeClaim)(nil)); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// waitForQuiescence waits for the role to settle after it was created,
// restarted or scaled, then reads its replica counts.
func (s *reconciliationState) waitForQuiescence(ctx context.Context, comp *model.Component) error {
	rs := s.roles[comp.Role]
	ns := s.cluster.Namespace

	if rs.created || rs.rolled || rs.scaled {
		w := Workload{Namespace: ns, StatefulSet: comp.Name(), Service: comp.ReadinessService}
		if err := s.r.quiescence(ctx, w, s.r.config.OperationTimeout); err != nil {
			if retry.IsFatal(err) {
				err = retry.Transient(err)
			}
			return fmt.Errorf("%s did not quiesce: %w", comp.Name(), err)
		}
		s.mu.Lock()
		s.quiesced = append(s.quiesced, comp.Role)
		s.mu.Unlock()
	}

	live, err := s.r.stores.StatefulSets.Get(ctx, ns, comp.Name())
	if err != nil {
		return err
	}
	rs.status = roleStatus(rs.target, live)
	s.r.recordReplicas(s.cluster.Name, comp.Role, rs.status.Replicas, rs.status.ReadyReplicas)
	return nil
}

func roleStatus(target int32, live *appsv1.StatefulSet) v1alpha1.RoleStatus {
	st := v1alpha1.RoleStatus{Replicas: target}
	if live != nil {
		st.ReadyReplicas = min(live.Status.ReadyReplicas, target)
	}
	return st
}

// reconcileDeployments reconciles the auxiliary deployments, deleting the
// ones the cluster no longer enables.
func (s *reconciliationState) reconcileDeployments(ctx context.Context) error {
	deployments := []struct {
		name    string
		desired *appsv1.Deployment
	}{
		{naming.EntityOperator(s.cluster.Name), s.trusted.EntityOperator},
		{naming.KafkaExporter(s.cluster.Name), s.trusted.KafkaExporter},
	}
	for _, d := range deployments {
		if _, err := reconcileOne(ctx, s, s.r.stores.Deployments, "Deployment", d.name, d.desired); err != nil {
			return err
		}
	}
	return nil
}
