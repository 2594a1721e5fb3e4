package controller

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	crcontroller "sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/operator/config"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/operator/scaling"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// ClusterReconciler reconciles KafkaCluster objects.
type ClusterReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder

	config        config.Config
	clock         clock.WithTicker
	enableMetrics bool

	stores         Stores
	storeOverrides []func(*Stores)
	status         StatusPublisher
	quiescence     QuiescenceFunc
	readiness      scaling.ReadinessWaiter
	certs          *certs.Manager
	driver         *Driver
}

// Option configures a ClusterReconciler.
type Option func(*ClusterReconciler)

// WithConfig sets the operator configuration.
func WithConfig(cfg config.Config) Option {
	return func(r *ClusterReconciler) {
		r.config = cfg
	}
}

// WithClock sets the clock used for certificates, waits and status times.
func WithClock(clk clock.WithTicker) Option {
	return func(r *ClusterReconciler) {
		r.clock = clk
	}
}

// WithMetrics enables or disables Prometheus metrics recording.
func WithMetrics(enable bool) Option {
	return func(r *ClusterReconciler) {
		r.enableMetrics = enable
	}
}

// WithStatusPublisher replaces the status subresource writer.
func WithStatusPublisher(p StatusPublisher) Option {
	return func(r *ClusterReconciler) {
		r.status = p
	}
}

// WithQuiescence replaces the wait that follows a restart or scale.
func WithQuiescence(fn QuiescenceFunc) Option {
	return func(r *ClusterReconciler) {
		r.quiescence = fn
	}
}

// WithReadinessWaiter replaces the readiness wait of scale-up.
func WithReadinessWaiter(w scaling.ReadinessWaiter) Option {
	return func(r *ClusterReconciler) {
		r.readiness = w
	}
}

// WithPods replaces the pod store.
func WithPods(p PodStore) Option {
	return func(r *ClusterReconciler) {
		r.storeOverrides = append(r.storeOverrides, func(s *Stores) { s.Pods = p })
	}
}

// WithStatefulSets replaces the StatefulSet store.
func WithStatefulSets(sts StatefulSetStore) Option {
	return func(r *ClusterReconciler) {
		r.storeOverrides = append(r.storeOverrides, func(s *Stores) { s.StatefulSets = sts })
	}
}

// NewClusterReconciler creates a ClusterReconciler backed by c.
func NewClusterReconciler(c client.Client, scheme *runtime.Scheme, recorder record.EventRecorder, opts ...Option) *ClusterReconciler {
	r := &ClusterReconciler{
		Client:        c,
		Scheme:        scheme,
		Recorder:      recorder,
		config:        config.Default(),
		clock:         clock.RealClock{},
		enableMetrics: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.stores = StoresFromSupplier(resource.NewSupplier(c, r.clock, r.config.PollInterval))
	for _, override := range r.storeOverrides {
		override(&r.stores)
	}
	if r.status == nil {
		r.status = NewStatusWriter(c, r.clock)
	}
	if r.quiescence == nil {
		r.quiescence = waitForQuiescence(r.stores.StatefulSets, r.stores.Services)
	}
	if r.readiness == nil {
		r.readiness = r.stores.StatefulSets
	}
	r.certs = certs.NewManager(r.clock)
	r.driver = NewDriver(r.stores.Clusters, r.createOrUpdate, r.config.MaxConcurrentReconciles)
	r.driver.observe = r.recordReconcileAll
	return r
}

// Driver returns the scheduler shared by watch and timer triggered passes.
func (r *ClusterReconciler) Driver() *Driver {
	return r.driver
}

// +kubebuilder:rbac:groups=kafka.imamik.io,resources=kafkaclusters,verbs=get;list;watch
// +kubebuilder:rbac:groups=kafka.imamik.io,resources=kafkaclusters/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=configmaps;secrets;services;persistentvolumeclaims,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch;delete
// +kubebuilder:rbac:groups=discovery.k8s.io,resources=endpointslices,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch
// +kubebuilder:rbac:groups=apps,resources=statefulsets;deployments,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=policy,resources=poddisruptionbudgets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=networking.k8s.io,resources=networkpolicies,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=coordination.k8s.io,resources=leases,verbs=get;list;watch;create;update;patch;delete

// Reconcile handles the reconciliation loop for KafkaCluster resources.
func (r *ClusterReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	status, err := r.driver.Reconcile(ctx, TriggerWatch, req.NamespacedName)
	return r.resultFor(ctx, status, err)
}

// resultFor maps the error class of a pass onto a controller-runtime result.
func (r *ClusterReconciler) resultFor(ctx context.Context, status ReconciliationStatus, err error) (ctrl.Result, error) {
	if err == nil {
		return ctrl.Result{}, nil
	}
	logger := log.FromContext(ctx)
	switch retry.KindOf(err) {
	case retry.KindTransient:
		logger.Info("reconciliation will be retried", "failedStep", status.FailedStep, "error", err.Error())
		return ctrl.Result{RequeueAfter: r.config.TransientRequeueAfter}, nil
	case retry.KindConfiguration:
		logger.Info("cluster spec is invalid, waiting for a change", "failedStep", status.FailedStep, "error", err.Error())
		return ctrl.Result{}, nil
	default:
		return ctrl.Result{}, err
	}
}

// createOrUpdate runs one pass for cluster and publishes its outcome. The
// status is published whether the pass succeeded or not.
func (r *ClusterReconciler) createOrUpdate(ctx context.Context, reconciliationID string, cluster *v1alpha1.KafkaCluster) (ReconciliationStatus, error) {
	logger := log.FromContext(ctx).WithValues("cluster", cluster.Name, "namespace", cluster.Namespace, "reconciliation", reconciliationID)
	ctx = log.IntoContext(ctx, logger)
	start := r.clock.Now()

	if cluster.Spec.Paused {
		logger.Info("cluster is paused, skipping reconciliation")
		status := ReconciliationStatus{
			ReconciliationID: reconciliationID,
			Cluster:          client.ObjectKeyFromObject(cluster),
			Generation:       cluster.Generation,
			Phase:            v1alpha1.ClusterPhasePaused,
		}
		if err := r.status.Publish(ctx, cluster, status); err != nil {
			return status, err
		}
		status.Published = true
		return status, nil
	}

	logger.Info("reconciling cluster")
	s := newReconciliationState(r, reconciliationID, cluster)
	err := s.run(ctx)
	status := s.status(err)

	if pubErr := r.status.Publish(ctx, cluster, status); pubErr != nil {
		logger.Error(pubErr, "failed to publish status")
		if err == nil {
			err = pubErr
		}
	} else {
		status.Published = true
	}

	r.recordOutcome(ctx, cluster, status, err, r.clock.Since(start))
	return status, err
}

// recordOutcome logs the pass and emits its event and metrics.
func (r *ClusterReconciler) recordOutcome(ctx context.Context, cluster *v1alpha1.KafkaCluster, status ReconciliationStatus, err error, duration time.Duration) {
	logger := log.FromContext(ctx)
	result := "success"

	switch {
	case err == nil:
		logger.Info("reconciliation complete", "phase", status.Phase, "duration", duration)
		r.Recorder.Eventf(cluster, corev1.EventTypeNormal, EventReasonReconcileSucceeded,
			"Reconciled cluster: kafka %d/%d ready, zookeeper %d/%d ready",
			status.Kafka.ReadyReplicas, status.Kafka.Replicas, status.Zookeeper.ReadyReplicas, status.Zookeeper.Replicas)
	case retry.IsConfiguration(err):
		result = "invalid"
		logger.Info("reconciliation rejected the cluster spec", "failedStep", status.FailedStep, "error", err.Error())
		r.Recorder.Eventf(cluster, corev1.EventTypeWarning, EventReasonInvalidConfiguration,
			"Invalid cluster spec: %v", err)
	default:
		result = "error"
		logger.Error(err, "reconciliation failed", "failedStep", status.FailedStep, "duration", duration)
		r.Recorder.Eventf(cluster, corev1.EventTypeWarning, EventReasonReconcileFailed,
			"Reconciliation failed at step %s: %v", status.FailedStep, err)
	}
	r.recordReconcile(cluster.Name, result, duration.Seconds())
}

// SetupWithManager sets up the controller with the Manager.
func (r *ClusterReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.KafkaCluster{}, builder.WithPredicates(predicate.GenerationChangedPredicate{})).
		Owns(&appsv1.StatefulSet{}).
		Owns(&appsv1.Deployment{}).
		Owns(&corev1.ConfigMap{}).
		Owns(&corev1.Secret{}).
		Owns(&corev1.Service{}).
		WithOptions(crcontroller.Options{
			MaxConcurrentReconciles: r.config.MaxConcurrentReconciles,
		}).
		Complete(r)
}
