// Package scaling changes the replica count of a StatefulSet in readiness
// gated steps, keeping per-replica dependents in line with the live replicas.
package scaling

import (
	"context"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// StepType names one step of a scale plan.
type StepType string

const (
	StepScaleUp             StepType = "ScaleUp"
	StepAwaitReadiness      StepType = "AwaitReadiness"
	StepReconcileDependents StepType = "ReconcileDependents"
	StepScaleDown           StepType = "ScaleDown"
)

// Step is one action of a plan. Indices are the replica ordinals added or
// removed by the plan.
type Step struct {
	Type     StepType
	Replicas int32
	Indices  []int32
	Removed  bool
}

// Plan returns the steps that move a workload from current to target replicas.
// Scaling up raises the count, waits for readiness, then reconciles the new
// replicas' dependents. Scaling down reconciles the removed replicas'
// dependents before lowering the count.
func Plan(current, target int32) []Step {
	switch {
	case target > current:
		added := indexRange(current, target)
		return []Step{
			{Type: StepScaleUp, Replicas: target, Indices: added},
			{Type: StepAwaitReadiness, Replicas: target, Indices: added},
			{Type: StepReconcileDependents, Replicas: target, Indices: added},
		}
	case target < current:
		removed := indexRange(target, current)
		return []Step{
			{Type: StepReconcileDependents, Replicas: target, Indices: removed, Removed: true},
			{Type: StepScaleDown, Replicas: target, Indices: removed, Removed: true},
		}
	default:
		return nil
	}
}

func indexRange(from, to int32) []int32 {
	out := make([]int32, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// Scaler changes the replica count of a workload.
type Scaler interface {
	ScaleUp(ctx context.Context, namespace, name string, replicas int32) (int32, error)
	ScaleDown(ctx context.Context, namespace, name string, replicas int32) (int32, error)
}

// ReadinessWaiter blocks until a workload reports all replicas ready.
type ReadinessWaiter interface {
	WaitForReady(ctx context.Context, namespace, name string, timeout time.Duration) error
}

// DependentsFunc reconciles the per-replica resources of indices. removed is
// true when the replicas are going away.
type DependentsFunc func(ctx context.Context, indices []int32, removed bool) error

// Coordinator executes scale plans.
type Coordinator struct {
	scaler  Scaler
	waiter  ReadinessWaiter
	timeout time.Duration
}

// NewCoordinator creates a Coordinator that waits at most timeout for new replicas.
func NewCoordinator(scaler Scaler, waiter ReadinessWaiter, timeout time.Duration) *Coordinator {
	return &Coordinator{scaler: scaler, waiter: waiter, timeout: timeout}
}

// Scale runs Plan(current, target) and returns the steps it completed. The
// first failing step ends the run; nothing is retried.
func (c *Coordinator) Scale(ctx context.Context, namespace, name string, current, target int32, dependents DependentsFunc) ([]Step, error) {
	logger := log.FromContext(ctx).WithValues("workload", name, "from", current, "to", target)

	plan := Plan(current, target)
	done := make([]Step, 0, len(plan))
	for _, step := range plan {
		logger.V(1).Info("scaling step", "step", step.Type, "indices", step.Indices)

		var err error
		switch step.Type {
		case StepScaleUp:
			_, err = c.scaler.ScaleUp(ctx, namespace, name, step.Replicas)
		case StepScaleDown:
			_, err = c.scaler.ScaleDown(ctx, namespace, name, step.Replicas)
		case StepAwaitReadiness:
			err = c.waiter.WaitForReady(ctx, namespace, name, c.timeout)
		case StepReconcileDependents:
			if dependents != nil {
				err = dependents(ctx, step.Indices, step.Removed)
			}
		}
		if err != nil {
			return done, fmt.Errorf("failed to %s %s: %w", step.Type, name, err)
		}
		done = append(done, step)
	}

	if len(plan) > 0 {
		logger.Info("scaled workload")
	}
	return done, nil
}
