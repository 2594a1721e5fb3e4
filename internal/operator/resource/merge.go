package resource

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	kafkav1alpha1 "github.com/imamik/kafka-operator/api/v1alpha1"
)

// Per-kind merge functions. Each copies the operator-owned part of the spec
// and keeps what the API server or other controllers assigned.

func MergeConfigMap(live, desired *corev1.ConfigMap) {
	live.Data = desired.Data
	live.BinaryData = desired.BinaryData
}

func MergeSecret(live, desired *corev1.Secret) {
	live.Data = desired.Data
	if live.Type == "" {
		live.Type = desired.Type
	}
}

// MergeService keeps the allocated cluster IPs and node ports.
func MergeService(live, desired *corev1.Service) {
	allocated := make(map[string]int32, len(live.Spec.Ports))
	for _, p := range live.Spec.Ports {
		allocated[p.Name] = p.NodePort
	}

	spec := *desired.Spec.DeepCopy()
	spec.ClusterIP = live.Spec.ClusterIP
	spec.ClusterIPs = live.Spec.ClusterIPs
	spec.IPFamilies = live.Spec.IPFamilies
	spec.IPFamilyPolicy = live.Spec.IPFamilyPolicy
	spec.HealthCheckNodePort = live.Spec.HealthCheckNodePort
	if spec.Type == corev1.ServiceTypeNodePort || spec.Type == corev1.ServiceTypeLoadBalancer {
		for i := range spec.Ports {
			if spec.Ports[i].NodePort == 0 {
				spec.Ports[i].NodePort = allocated[spec.Ports[i].Name]
			}
		}
	}
	live.Spec = spec
}

// MergePersistentVolumeClaim only grows the storage request; the rest of a claim spec is immutable.
// Cluster owner references follow desired, so a claim that should outlive
// the cluster loses them. References of other owners stay.
func MergePersistentVolumeClaim(live, desired *corev1.PersistentVolumeClaim) {
	live.OwnerReferences = mergeClusterOwners(live.OwnerReferences, desired.OwnerReferences)

	want, ok := desired.Spec.Resources.Requests[corev1.ResourceStorage]
	if !ok {
		return
	}
	have := live.Spec.Resources.Requests[corev1.ResourceStorage]
	if want.Cmp(have) > 0 {
		if live.Spec.Resources.Requests == nil {
			live.Spec.Resources.Requests = corev1.ResourceList{}
		}
		live.Spec.Resources.Requests[corev1.ResourceStorage] = want
	}
}

// MergeStatefulSet leaves replicas to the scaling coordinator and keeps the immutable fields.
func MergeStatefulSet(live, desired *appsv1.StatefulSet) {
	live.Spec.Template = *desired.Spec.Template.DeepCopy()
	live.Spec.UpdateStrategy = desired.Spec.UpdateStrategy
	live.Spec.MinReadySeconds = desired.Spec.MinReadySeconds
	if desired.Spec.RevisionHistoryLimit != nil {
		live.Spec.RevisionHistoryLimit = desired.Spec.RevisionHistoryLimit
	}
	live.Spec.PersistentVolumeClaimRetentionPolicy = desired.Spec.PersistentVolumeClaimRetentionPolicy
}

func MergePodDisruptionBudget(live, desired *policyv1.PodDisruptionBudget) {
	live.Spec = *desired.Spec.DeepCopy()
}

func MergeNetworkPolicy(live, desired *networkingv1.NetworkPolicy) {
	live.Spec = *desired.Spec.DeepCopy()
}

// MergeDeployment keeps the immutable selector.
func MergeDeployment(live, desired *appsv1.Deployment) {
	selector := live.Spec.Selector
	live.Spec = *desired.Spec.DeepCopy()
	if selector != nil {
		live.Spec.Selector = selector
	}
}

func mergeClusterOwners(live, desired []metav1.OwnerReference) []metav1.OwnerReference {
	var out []metav1.OwnerReference
	for _, ref := range live {
		gv, err := schema.ParseGroupVersion(ref.APIVersion)
		if err == nil && gv.Group == kafkav1alpha1.GroupVersion.Group {
			continue
		}
		out = append(out, ref)
	}
	return append(out, desired...)
}
