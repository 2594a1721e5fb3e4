package resource

import (
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	kafkav1alpha1 "github.com/imamik/kafka-operator/api/v1alpha1"
)

// Supplier bundles one operator per resource kind the controller manages.
type Supplier struct {
	Clusters             *Operator[kafkav1alpha1.KafkaCluster, *kafkav1alpha1.KafkaCluster]
	ConfigMaps           *Operator[corev1.ConfigMap, *corev1.ConfigMap]
	Secrets              *Operator[corev1.Secret, *corev1.Secret]
	Services             *ServiceOperator
	Claims               *Operator[corev1.PersistentVolumeClaim, *corev1.PersistentVolumeClaim]
	ClaimPruner          *Operator[corev1.PersistentVolumeClaim, *corev1.PersistentVolumeClaim]
	StatefulSets         *StatefulSetOperator
	Pods                 *PodOperator
	PodDisruptionBudgets *Operator[policyv1.PodDisruptionBudget, *policyv1.PodDisruptionBudget]
	NetworkPolicies      *Operator[networkingv1.NetworkPolicy, *networkingv1.NetworkPolicy]
	Deployments          *Operator[appsv1.Deployment, *appsv1.Deployment]
}

// NewSupplier creates operators backed by c. Waits poll every pollInterval on clk.
func NewSupplier(c client.Client, clk clock.Clock, pollInterval time.Duration) *Supplier {
	return &Supplier{
		Clusters:             New[kafkav1alpha1.KafkaCluster](c, "KafkaCluster", nil),
		ConfigMaps:           New[corev1.ConfigMap](c, "ConfigMap", MergeConfigMap),
		Secrets:              New[corev1.Secret](c, "Secret", MergeSecret),
		Services:             NewServiceOperator(c, clk, pollInterval),
		Claims:               New[corev1.PersistentVolumeClaim](c, "PersistentVolumeClaim", MergePersistentVolumeClaim, WithPruneDisabled()),
		ClaimPruner:          New[corev1.PersistentVolumeClaim](c, "PersistentVolumeClaim", MergePersistentVolumeClaim),
		StatefulSets:         NewStatefulSetOperator(c, clk, pollInterval),
		Pods:                 NewPodOperator(c, clk, pollInterval),
		PodDisruptionBudgets: New[policyv1.PodDisruptionBudget](c, "PodDisruptionBudget", MergePodDisruptionBudget),
		NetworkPolicies:      New[networkingv1.NetworkPolicy](c, "NetworkPolicy", MergeNetworkPolicy),
		Deployments:          New[appsv1.Deployment](c, "Deployment", MergeDeployment),
	}
}
