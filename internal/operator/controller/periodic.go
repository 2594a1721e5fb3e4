package controller

import (
	"context"
	"time"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"
)

// PeriodicReconciler runs a full reconciliation of every watched namespace
// on a fixed interval. Watch events only fire on changes; the timer catches
// drift and finishes work an earlier pass left behind.
type PeriodicReconciler struct {
	driver   *Driver
	scopes   []string
	interval time.Duration
	clock    clock.WithTicker
}

var _ manager.Runnable = (*PeriodicReconciler)(nil)
var _ manager.LeaderElectionRunnable = (*PeriodicReconciler)(nil)

// NewPeriodicReconciler creates a runnable that calls ReconcileAll for each
// scope every interval.
func NewPeriodicReconciler(driver *Driver, scopes []string, interval time.Duration, clk clock.WithTicker) *PeriodicReconciler {
	return &PeriodicReconciler{driver: driver, scopes: scopes, interval: interval, clock: clk}
}

// Start blocks until ctx is done.
func (p *PeriodicReconciler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("periodic")
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	logger.Info("starting periodic reconciliation", "interval", p.interval, "scopes", p.scopes)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			p.reconcileAll(ctx)
		}
	}
}

func (p *PeriodicReconciler) reconcileAll(ctx context.Context) {
	logger := log.FromContext(ctx).WithName("periodic")
	for _, scope := range p.scopes {
		if _, err := p.driver.ReconcileAll(ctx, TriggerTimer, scope); err != nil {
			logger.Error(err, "periodic reconciliation failed", "scope", scope)
		}
	}
}

// NeedLeaderElection makes only the leader run periodic passes.
func (p *PeriodicReconciler) NeedLeaderElection() bool {
	return true
}
