package controller

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/operator/scaling"
)

// ObjectStore reads and reconciles one resource kind.
type ObjectStore[PT client.Object] interface {
	Get(ctx context.Context, namespace, name string) (PT, error)
	Reconcile(ctx context.Context, namespace, name string, desired PT) (resource.Result[PT], error)
}

// ListableStore adds label-selected listing to ObjectStore.
type ListableStore[PT client.Object] interface {
	ObjectStore[PT]
	List(ctx context.Context, namespace string, selector labels.Selector) ([]PT, error)
}

// ServiceStore reconciles services and waits for their endpoints.
type ServiceStore interface {
	ListableStore[*corev1.Service]
	WaitForEndpoints(ctx context.Context, namespace, name string, timeout time.Duration) error
}

// StatefulSetStore reconciles and scales StatefulSets.
type StatefulSetStore interface {
	ObjectStore[*appsv1.StatefulSet]
	scaling.Scaler
	scaling.ReadinessWaiter
}

// PodStore restarts single pods and waits for their replacements.
type PodStore interface {
	Get(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	Restart(ctx context.Context, namespace, name string) (types.UID, error)
	WaitForReady(ctx context.Context, namespace, name string, previous types.UID, timeout time.Duration) error
}

// ClusterStore reads KafkaClusters.
type ClusterStore interface {
	Get(ctx context.Context, namespace, name string) (*v1alpha1.KafkaCluster, error)
	List(ctx context.Context, namespace string, selector labels.Selector) ([]*v1alpha1.KafkaCluster, error)
}

// StatusPublisher persists the outcome of a pass on the cluster's status.
type StatusPublisher interface {
	Publish(ctx context.Context, cluster *v1alpha1.KafkaCluster, status ReconciliationStatus) error
}

// Workload names a StatefulSet and the service that fronts it.
type Workload struct {
	Namespace   string
	StatefulSet string
	Service     string
}

// QuiescenceFunc blocks until the workload runs all desired replicas ready at
// its latest generation, or timeout elapses.
type QuiescenceFunc func(ctx context.Context, w Workload, timeout time.Duration) error

// waitForQuiescence waits for the StatefulSet, then for the service to have
// ready endpoints.
func waitForQuiescence(statefulSets StatefulSetStore, services ServiceStore) QuiescenceFunc {
	return func(ctx context.Context, w Workload, timeout time.Duration) error {
		if err := statefulSets.WaitForReady(ctx, w.Namespace, w.StatefulSet, timeout); err != nil {
			return err
		}
		return services.WaitForEndpoints(ctx, w.Namespace, w.Service, timeout)
	}
}

// Stores is the set of capabilities a pass uses.
type Stores struct {
	Clusters             ClusterStore
	ConfigMaps           ObjectStore[*corev1.ConfigMap]
	Secrets              ObjectStore[*corev1.Secret]
	Services             ServiceStore
	Claims               ObjectStore[*corev1.PersistentVolumeClaim]
	ClaimPruner          ObjectStore[*corev1.PersistentVolumeClaim]
	StatefulSets         StatefulSetStore
	Pods                 PodStore
	PodDisruptionBudgets ObjectStore[*policyv1.PodDisruptionBudget]
	NetworkPolicies      ObjectStore[*networkingv1.NetworkPolicy]
	Deployments          ObjectStore[*appsv1.Deployment]
}

// StoresFromSupplier adapts the resource operators to Stores.
func StoresFromSupplier(s *resource.Supplier) Stores {
	return Stores{
		Clusters:             s.Clusters,
		ConfigMaps:           s.ConfigMaps,
		Secrets:              s.Secrets,
		Services:             s.Services,
		Claims:               s.Claims,
		ClaimPruner:          s.ClaimPruner,
		StatefulSets:         s.StatefulSets,
		Pods:                 s.Pods,
		PodDisruptionBudgets: s.PodDisruptionBudgets,
		NetworkPolicies:      s.NetworkPolicies,
		Deployments:          s.Deployments,
	}
}
