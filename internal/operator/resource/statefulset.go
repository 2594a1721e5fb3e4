package resource

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/kafka-operator/internal/util/retry"
)

// StatefulSetOperator adds scaling and readiness on top of the generic operator.
type StatefulSetOperator struct {
	*Operator[appsv1.StatefulSet, *appsv1.StatefulSet]
	client client.Client
	poller poller
}

// NewStatefulSetOperator creates a StatefulSetOperator.
func NewStatefulSetOperator(c client.Client, clk clock.Clock, pollInterval time.Duration) *StatefulSetOperator {
	return &StatefulSetOperator{
		Operator: New[appsv1.StatefulSet](c, "StatefulSet", MergeStatefulSet),
		client:   c,
		poller:   poller{clock: clk, interval: pollInterval},
	}
}

// Replicas returns the desired replica count of a StatefulSet.
func Replicas(sts *appsv1.StatefulSet) int32 {
	return ptr.Deref(sts.Spec.Replicas, 1)
}

// ScaleUp raises spec.replicas to replicas. It does nothing when the
// StatefulSet already has at least that many. Returns the resulting count.
func (o *StatefulSetOperator) ScaleUp(ctx context.Context, namespace, name string, replicas int32) (int32, error) {
	return o.scale(ctx, namespace, name, replicas, func(current int32) bool { return current < replicas })
}

// ScaleDown lowers spec.replicas to replicas. It does nothing when the
// StatefulSet already has at most that many. Returns the resulting count.
func (o *StatefulSetOperator) ScaleDown(ctx context.Context, namespace, name string, replicas int32) (int32, error) {
	return o.scale(ctx, namespace, name, replicas, func(current int32) bool { return current > replicas })
}

func (o *StatefulSetOperator) scale(ctx context.Context, namespace, name string, replicas int32, needed func(int32) bool) (int32, error) {
	live, err := o.Get(ctx, namespace, name)
	if err != nil {
		return 0, err
	}
	if live == nil {
		return 0, retry.Transientf("statefulset %s/%s does not exist", namespace, name)
	}

	current := Replicas(live)
	if !needed(current) {
		return current, nil
	}

	scaled := live.DeepCopy()
	scaled.Spec.Replicas = ptr.To(replicas)
	patch := client.MergeFromWithOptions(live, client.MergeFromWithOptimisticLock{})
	if err := o.client.Patch(ctx, scaled, patch); err != nil {
		return current, fmt.Errorf("failed to scale statefulset %s/%s to %d: %w", namespace, name, replicas, ClassifyAPIError(err))
	}

	log.FromContext(ctx).Info("scaled statefulset", "namespace", namespace, "name", name, "from", current, "to", replicas)
	return replicas, nil
}

// Observed reports whether the StatefulSet controller has seen the latest spec.
func (o *StatefulSetOperator) Observed(ctx context.Context, namespace, name string) (bool, error) {
	live, err := o.Get(ctx, namespace, name)
	if err != nil || live == nil {
		return false, err
	}
	return live.Status.ObservedGeneration >= live.Generation, nil
}

// Readiness reports whether the StatefulSet has observed its spec and runs
// exactly the desired number of replicas, all ready.
func (o *StatefulSetOperator) Readiness(ctx context.Context, namespace, name string) (bool, error) {
	live, err := o.Get(ctx, namespace, name)
	if err != nil || live == nil {
		return false, err
	}
	return IsStatefulSetReady(live), nil
}

// IsStatefulSetReady checks the readiness predicate on an already fetched StatefulSet.
func IsStatefulSetReady(sts *appsv1.StatefulSet) bool {
	want := Replicas(sts)
	return sts.Status.ObservedGeneration >= sts.Generation &&
		sts.Status.Replicas == want &&
		sts.Status.ReadyReplicas >= want
}

// WaitForObserved blocks until Observed holds or timeout elapses.
func (o *StatefulSetOperator) WaitForObserved(ctx context.Context, namespace, name string, timeout time.Duration) error {
	return o.poller.waitFor(ctx, fmt.Sprintf("statefulset %s/%s to be observed", namespace, name), timeout,
		func(ctx context.Context) (bool, error) {
			return o.Observed(ctx, namespace, name)
		})
}

// WaitForReady blocks until Readiness holds or timeout elapses.
func (o *StatefulSetOperator) WaitForReady(ctx context.Context, namespace, name string, timeout time.Duration) error {
	return o.poller.waitFor(ctx, fmt.Sprintf("statefulset %s/%s to be ready", namespace, name), timeout,
		func(ctx context.Context) (bool, error) {
			return o.Readiness(ctx, namespace, name)
		})
}
