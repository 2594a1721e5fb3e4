package controller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/config"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// Triggers of a reconciliation.
const (
	TriggerWatch = "watch"
	TriggerTimer = "timer"
)

// PassFunc runs one reconciliation pass for cluster.
type PassFunc func(ctx context.Context, reconciliationID string, cluster *v1alpha1.KafkaCluster) (ReconciliationStatus, error)

// ClusterOutcome is the result of one cluster's pass within ReconcileAll.
type ClusterOutcome struct {
	Cluster types.NamespacedName
	Status  ReconciliationStatus
	Err     error
}

// Driver schedules reconciliation passes. Passes for different clusters run
// concurrently; passes for the same cluster never overlap.
type Driver struct {
	clusters      ClusterStore
	pass          PassFunc
	maxConcurrent int

	locks   *clusterLocks
	group   singleflight.Group
	counter atomic.Uint64

	// observe is called once per ReconcileAll with its trigger and result.
	observe func(trigger, result string)
}

// NewDriver creates a Driver that runs pass for clusters read from clusters,
// at most maxConcurrent at a time within one ReconcileAll.
func NewDriver(clusters ClusterStore, pass PassFunc, maxConcurrent int) *Driver {
	return &Driver{
		clusters:      clusters,
		pass:          pass,
		maxConcurrent: maxConcurrent,
		locks:         newClusterLocks(),
	}
}

func (d *Driver) nextID(trigger string) string {
	return trigger + "-" + strconv.FormatUint(d.counter.Add(1), 10)
}

// Reconcile runs a pass for the cluster identified by key. When a pass for
// the same cluster is running, the request waits for a single follow-up pass
// shared with every other request that arrived meanwhile. A deleted cluster
// yields an empty status and no error.
func (d *Driver) Reconcile(ctx context.Context, trigger string, key types.NamespacedName) (ReconciliationStatus, error) {
	return d.locks.run(ctx, key, func(ctx context.Context) (ReconciliationStatus, error) {
		cluster, err := d.clusters.Get(ctx, key.Namespace, key.Name)
		if err != nil {
			return ReconciliationStatus{Cluster: key}, fmt.Errorf("failed to get cluster %s: %w", key, err)
		}
		if cluster == nil {
			log.FromContext(ctx).V(1).Info("cluster no longer exists", "cluster", key.Name, "namespace", key.Namespace)
			return ReconciliationStatus{Cluster: key}, nil
		}
		return d.pass(ctx, d.nextID(trigger), cluster)
	})
}

// ReconcileAll runs a pass for every cluster in namespace, or in all
// namespaces for "*". It returns once every pass has finished, with one
// outcome per cluster and the first error. A failing cluster never stops the
// others. Concurrent calls for the same trigger and namespace share one run.
func (d *Driver) ReconcileAll(ctx context.Context, trigger, namespace string) ([]ClusterOutcome, error) {
	v, err, _ := d.group.Do(trigger+"/"+namespace, func() (any, error) {
		outcomes, err := d.reconcileAll(ctx, trigger, namespace)
		if d.observe != nil {
			result := "success"
			if err != nil {
				result = "error"
			}
			d.observe(trigger, result)
		}
		return outcomes, err
	})
	outcomes, _ := v.([]ClusterOutcome)
	return outcomes, err
}

func (d *Driver) reconcileAll(ctx context.Context, trigger, namespace string) ([]ClusterOutcome, error) {
	logger := log.FromContext(ctx).WithValues("trigger", trigger, "scope", namespace)

	scope := namespace
	if scope == config.AllNamespaces {
		scope = ""
	}
	clusters, err := d.clusters.List(ctx, scope, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters in %q: %w", namespace, err)
	}
	logger.V(1).Info("reconciling all clusters", "count", len(clusters))

	outcomes := make([]ClusterOutcome, len(clusters))
	var g errgroup.Group
	if d.maxConcurrent > 0 {
		g.SetLimit(d.maxConcurrent)
	}
	for i, cluster := range clusters {
		key := client.ObjectKeyFromObject(cluster)
		g.Go(func() error {
			status, err := d.Reconcile(ctx, trigger, key)
			outcomes[i] = ClusterOutcome{Cluster: key, Status: status, Err: err}
			if err != nil {
				logger.Error(err, "cluster reconciliation failed", "cluster", key.Name, "namespace", key.Namespace)
				return fmt.Errorf("failed to reconcile cluster %s: %w", key, err)
			}
			return nil
		})
	}
	err = g.Wait()

	logger.Info("reconciled all clusters", "count", len(clusters), "failed", countFailed(outcomes))
	return outcomes, err
}

func countFailed(outcomes []ClusterOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// runFunc is one pass guarded by clusterLocks.
type runFunc func(ctx context.Context) (ReconciliationStatus, error)

// pendingRun is the follow-up pass queued behind a running one. Every
// request that arrives while a pass runs joins the same pendingRun.
type pendingRun struct {
	fn      runFunc
	ctx     context.Context
	done    chan struct{}
	status  ReconciliationStatus
	err     error
	waiting int
}

// clusterLocks serializes passes per cluster and coalesces queued requests.
type clusterLocks struct {
	mu      sync.Mutex
	running map[types.NamespacedName]*pendingRun
}

func newClusterLocks() *clusterLocks {
	return &clusterLocks{running: map[types.NamespacedName]*pendingRun{}}
}

// run executes fn when no pass for key is running. Otherwise it waits for
// the follow-up pass, which runs once the current one finishes. A waiter
// whose ctx ends gives up with a transient error; the follow-up still runs.
func (l *clusterLocks) run(ctx context.Context, key types.NamespacedName, fn runFunc) (ReconciliationStatus, error) {
	l.mu.Lock()
	pending, busy := l.running[key]
	if !busy {
		l.running[key] = nil
		l.mu.Unlock()

		status, err := fn(ctx)
		l.release(key)
		return status, err
	}
	if pending == nil {
		pending = &pendingRun{fn: fn, ctx: context.WithoutCancel(ctx), done: make(chan struct{})}
		l.running[key] = pending
	}
	pending.waiting++
	l.mu.Unlock()

	log.FromContext(ctx).V(1).Info("reconciliation already running, coalescing", "cluster", key.Name, "namespace", key.Namespace)
	select {
	case <-pending.done:
		return pending.status, pending.err
	case <-ctx.Done():
		return ReconciliationStatus{Cluster: key}, retry.Transient(fmt.Errorf("gave up waiting for reconciliation of %s: %w", key, ctx.Err()))
	}
}

// release ends the running pass for key and starts the queued one, if any.
func (l *clusterLocks) release(key types.NamespacedName) {
	l.mu.Lock()
	pending := l.running[key]
	if pending == nil {
		delete(l.running, key)
		l.mu.Unlock()
		return
	}
	l.running[key] = nil
	l.mu.Unlock()

	go func() {
		pending.status, pending.err = pending.fn(pending.ctx)
		close(pending.done)
		l.release(key)
	}()
}

// waiting returns the number of requests queued behind the running pass for key.
func (l *clusterLocks) waiting(key types.NamespacedName) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.running[key]; p != nil {
		return p.waiting
	}
	return 0
}

// busy reports whether a pass for key is running.
func (l *clusterLocks) busy(key types.NamespacedName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[key]
	return ok
}
