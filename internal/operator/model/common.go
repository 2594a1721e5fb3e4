package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/naming"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// Mount paths shared by the broker and ensemble containers.
const (
	dataVolume         = "data"
	configVolume       = "config"
	nodeCertsVolume    = "node-certs"
	clusterCAVolume    = "cluster-ca-certs"
	clientsCAVolume    = "clients-ca-certs"
	configMountPath    = "/opt/kafka/custom-config"
	nodeCertsMountPath = "/opt/kafka/node-certs"
	clusterCAMountPath = "/opt/kafka/cluster-ca-certs"
	clientsCAMountPath = "/opt/kafka/client-ca-certs"

	// podNameLabel is set on every StatefulSet pod by the StatefulSet controller.
	podNameLabel = "statefulset.kubernetes.io/pod-name"

	terminationGracePeriod int64 = 30
	fsGroup                int64 = 1001
)

// meta builds object metadata owned by the cluster.
func (b *builder) meta(name, role string) metav1.ObjectMeta {
	lb := labels.NewLabelBuilder(b.cluster.Name)
	if role != "" {
		lb.WithRole(role)
	}
	return metav1.ObjectMeta{
		Name:            name,
		Namespace:       b.cluster.Namespace,
		Labels:          lb.Build(),
		OwnerReferences: []metav1.OwnerReference{b.owner},
	}
}

// podLabels merges the role selector into the cluster labels.
func (b *builder) podLabels(role string) map[string]string {
	return labels.NewLabelBuilder(b.cluster.Name).WithRole(role).Build()
}

func (b *builder) serviceDNS(service string) string {
	return fmt.Sprintf("%s.%s.svc", service, b.cluster.Namespace)
}

func (b *builder) podDNS(pod, headless string) string {
	return fmt.Sprintf("%s.%s.%s.svc", pod, headless, b.cluster.Namespace)
}

// renderProperties writes key=value lines sorted by key; overrides win.
func renderProperties(defaults, overrides map[string]string) string {
	merged := maps.Clone(defaults)
	if merged == nil {
		merged = map[string]string{}
	}
	maps.Copy(merged, overrides)

	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		fmt.Fprintf(&sb, "%s=%s\n", k, merged[k])
	}
	return sb.String()
}

// renderYAML renders a user supplied map; empty maps render as "".
func renderYAML(kind string, m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to render %s configuration: %w", kind, err)
	}
	return string(out), nil
}

// hashData fingerprints config map data.
func hashData(data map[string]string) string {
	h := sha256.New()
	for _, k := range slices.Sorted(maps.Keys(data)) {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(data[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func heapOpts(jvm *v1alpha1.JvmOptions) string {
	if jvm == nil {
		return ""
	}
	var parts []string
	if jvm.Xms != "" {
		parts = append(parts, "-Xms"+jvm.Xms)
	}
	if jvm.Xmx != "" {
		parts = append(parts, "-Xmx"+jvm.Xmx)
	}
	return strings.Join(parts, " ")
}

func validateStorage(role string, s v1alpha1.StorageSpec) error {
	switch s.Type {
	case v1alpha1.StorageTypeEphemeral:
		return nil
	case v1alpha1.StorageTypePersistentClaim:
		if s.Size == "" {
			return retry.Configurationf("%s storage of type %s requires a size", role, s.Type)
		}
		if _, err := resource.ParseQuantity(s.Size); err != nil {
			return retry.Configurationf("%s storage size %q is invalid: %v", role, s.Size, err)
		}
		return nil
	default:
		return retry.Configurationf("%s storage type %q is not supported", role, s.Type)
	}
}

// dataVolumeSource returns the pod volume for ephemeral storage, or nil when
// the data volume comes from the claim template.
func dataVolumeSource(s v1alpha1.StorageSpec) *corev1.Volume {
	if s.Type != v1alpha1.StorageTypeEphemeral {
		return nil
	}
	return &corev1.Volume{Name: dataVolume, VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}}
}

func claimSpec(s v1alpha1.StorageSpec) corev1.PersistentVolumeClaimSpec {
	spec := corev1.PersistentVolumeClaimSpec{
		AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
		Resources: corev1.VolumeResourceRequirements{
			Requests: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse(s.Size)},
		},
	}
	if s.Class != "" {
		spec.StorageClassName = ptr.To(s.Class)
	}
	return spec
}

// claimTemplates returns the data claim template of a persistent role.
func claimTemplates(s v1alpha1.StorageSpec, podLabels map[string]string) []corev1.PersistentVolumeClaim {
	if s.Type != v1alpha1.StorageTypePersistentClaim {
		return nil
	}
	return []corev1.PersistentVolumeClaim{{
		ObjectMeta: metav1.ObjectMeta{Name: dataVolume, Labels: podLabels},
		Spec:       claimSpec(s),
	}}
}

// claim is the claim the StatefulSet controller binds to pod.
func (b *builder) claim(role, pod string, s v1alpha1.StorageSpec) *corev1.PersistentVolumeClaim {
	m := b.meta(naming.DataClaim(pod), role)
	m.Labels[labels.KeyPodName] = pod
	m.Annotations = map[string]string{labels.AnnotationDeleteClaim: fmt.Sprintf("%t", s.DeleteClaim)}
	// Claims outlive the cluster unless the user asked otherwise.
	if !s.DeleteClaim {
		m.OwnerReferences = nil
	}
	return &corev1.PersistentVolumeClaim{ObjectMeta: m, Spec: claimSpec(s)}
}

func (b *builder) podDisruptionBudget(workload, role string) *policyv1.PodDisruptionBudget {
	return &policyv1.PodDisruptionBudget{
		ObjectMeta: b.meta(naming.PodDisruptionBudget(workload), role),
		Spec: policyv1.PodDisruptionBudgetSpec{
			MaxUnavailable: ptr.To(intstr.FromInt32(1)),
			Selector:       &metav1.LabelSelector{MatchLabels: labels.Selector(b.cluster.Name, role)},
		},
	}
}

// networkPolicy allows open ports from anywhere and internal ports from pods
// of the same cluster.
func (b *builder) networkPolicy(workload, role string, open, internal []int32) *networkingv1.NetworkPolicy {
	var rules []networkingv1.NetworkPolicyIngressRule
	if len(open) > 0 {
		rules = append(rules, networkingv1.NetworkPolicyIngressRule{Ports: policyPorts(open)})
	}
	if len(internal) > 0 {
		rules = append(rules, networkingv1.NetworkPolicyIngressRule{
			Ports: policyPorts(internal),
			From: []networkingv1.NetworkPolicyPeer{{
				PodSelector: &metav1.LabelSelector{MatchLabels: map[string]string{labels.KeyCluster: b.cluster.Name}},
			}},
		})
	}
	return &networkingv1.NetworkPolicy{
		ObjectMeta: b.meta(naming.NetworkPolicy(workload), role),
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: labels.Selector(b.cluster.Name, role)},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeIngress},
			Ingress:     rules,
		},
	}
}

func policyPorts(ports []int32) []networkingv1.NetworkPolicyPort {
	out := make([]networkingv1.NetworkPolicyPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, networkingv1.NetworkPolicyPort{
			Protocol: ptr.To(corev1.ProtocolTCP),
			Port:     ptr.To(intstr.FromInt32(p)),
		})
	}
	return out
}

// tcpProbe sets every field the API server would otherwise default, so the
// live and desired templates compare equal.
func tcpProbe(port int32, initialDelay int32) *corev1.Probe {
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt32(port)},
		},
		InitialDelaySeconds: initialDelay,
		TimeoutSeconds:      5,
		PeriodSeconds:       10,
		SuccessThreshold:    1,
		FailureThreshold:    3,
	}
}

func podSecurityContext() *corev1.PodSecurityContext {
	return &corev1.PodSecurityContext{FSGroup: ptr.To(fsGroup)}
}

func secretVolume(name, secret string) corev1.Volume {
	return corev1.Volume{
		Name:         name,
		VolumeSource: corev1.VolumeSource{Secret: &corev1.SecretVolumeSource{SecretName: secret}},
	}
}

func configMapVolume(name, configMap string) corev1.Volume {
	return corev1.Volume{
		Name: name,
		VolumeSource: corev1.VolumeSource{ConfigMap: &corev1.ConfigMapVolumeSource{
			LocalObjectReference: corev1.LocalObjectReference{Name: configMap},
		}},
	}
}

func podNameEnv() corev1.EnvVar {
	return corev1.EnvVar{
		Name: "POD_NAME",
		ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{APIVersion: "v1", FieldPath: "metadata.name"},
		},
	}
}

// withPodDefaults fills in the fields the API server defaults on pod
// templates, so the merged template equals the live one.
func withPodDefaults(spec *corev1.PodSpec) {
	spec.DNSPolicy = corev1.DNSClusterFirst
	spec.RestartPolicy = corev1.RestartPolicyAlways
	spec.SchedulerName = corev1.DefaultSchedulerName
	spec.TerminationGracePeriodSeconds = ptr.To(terminationGracePeriod)
	spec.EnableServiceLinks = ptr.To(false)
	if spec.SecurityContext == nil {
		spec.SecurityContext = podSecurityContext()
	}
	for i := range spec.Containers {
		c := &spec.Containers[i]
		c.TerminationMessagePath = corev1.TerminationMessagePathDefault
		c.TerminationMessagePolicy = corev1.TerminationMessageReadFile
		c.ImagePullPolicy = corev1.PullIfNotPresent
		for j := range c.Ports {
			c.Ports[j].Protocol = corev1.ProtocolTCP
		}
	}
	for i := range spec.Volumes {
		v := &spec.Volumes[i]
		switch {
		case v.Secret != nil:
			v.Secret.DefaultMode = ptr.To(corev1.SecretVolumeSourceDefaultMode)
		case v.ConfigMap != nil:
			v.ConfigMap.DefaultMode = ptr.To(corev1.ConfigMapVolumeSourceDefaultMode)
		}
	}
}

func servicePort(name string, port int32) corev1.ServicePort {
	return corev1.ServicePort{
		Name:       name,
		Protocol:   corev1.ProtocolTCP,
		Port:       port,
		TargetPort: intstr.FromInt32(port),
	}
}

func containerPort(name string, port int32) corev1.ContainerPort {
	return corev1.ContainerPort{Name: name, ContainerPort: port, Protocol: corev1.ProtocolTCP}
}

// service builds a service selecting the role's pods. Extra selector keys
// narrow it further, e.g. to one pod.
func (b *builder) service(name, role string, svcType corev1.ServiceType, ports []corev1.ServicePort, extraSelector map[string]string) *corev1.Service {
	selector := labels.Selector(b.cluster.Name, role)
	maps.Copy(selector, extraSelector)
	svc := &corev1.Service{
		ObjectMeta: b.meta(name, role),
		Spec: corev1.ServiceSpec{
			Type:                  svcType,
			Selector:              selector,
			Ports:                 ports,
			SessionAffinity:       corev1.ServiceAffinityNone,
			InternalTrafficPolicy: ptr.To(corev1.ServiceInternalTrafficPolicyCluster),
		},
	}
	if svcType == corev1.ServiceTypeNodePort {
		svc.Spec.ExternalTrafficPolicy = corev1.ServiceExternalTrafficPolicyCluster
	}
	return svc
}

// headlessService publishes every pod, ready or not, for peer discovery.
func (b *builder) headlessService(name, role string, ports []corev1.ServicePort) *corev1.Service {
	svc := b.service(name, role, corev1.ServiceTypeClusterIP, ports, nil)
	svc.Spec.ClusterIP = corev1.ClusterIPNone
	svc.Spec.PublishNotReadyAddresses = true
	return svc
}
