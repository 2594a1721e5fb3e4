package resource

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// PodOperator restarts pods and waits for their replacements.
type PodOperator struct {
	*Operator[corev1.Pod, *corev1.Pod]
	poller poller
}

// NewPodOperator creates a PodOperator.
func NewPodOperator(c client.Client, clk clock.Clock, pollInterval time.Duration) *PodOperator {
	return &PodOperator{
		Operator: New[corev1.Pod](c, "Pod", nil),
		poller:   poller{clock: clk, interval: pollInterval},
	}
}

// Restart deletes the pod so its controller recreates it. It returns the UID
// of the deleted pod, or an empty UID when the pod did not exist.
func (o *PodOperator) Restart(ctx context.Context, namespace, name string) (types.UID, error) {
	live, err := o.Get(ctx, namespace, name)
	if err != nil || live == nil {
		return "", err
	}
	if _, err := o.Reconcile(ctx, namespace, name, nil); err != nil {
		return "", fmt.Errorf("failed to restart pod %s/%s: %w", namespace, name, err)
	}
	return live.UID, nil
}

// Readiness reports whether the pod exists, is not terminating, is not the
// pod identified by previous, and has a true Ready condition.
func (o *PodOperator) Readiness(ctx context.Context, namespace, name string, previous types.UID) (bool, error) {
	pod, err := o.Get(ctx, namespace, name)
	if err != nil || pod == nil {
		return false, err
	}
	if pod.DeletionTimestamp != nil || (previous != "" && pod.UID == previous) {
		return false, nil
	}
	return IsPodReady(pod), nil
}

// IsPodReady checks the Ready condition of a pod.
func IsPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// WaitForReady blocks until the replacement of previous is ready or timeout elapses.
func (o *PodOperator) WaitForReady(ctx context.Context, namespace, name string, previous types.UID, timeout time.Duration) error {
	return o.poller.waitFor(ctx, fmt.Sprintf("pod %s/%s to be ready", namespace, name), timeout,
		func(ctx context.Context) (bool, error) {
			return o.Readiness(ctx, namespace, name, previous)
		})
}
