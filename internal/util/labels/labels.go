package labels

import (
	"maps"
	"strings"
)

// Domain prefixes every label and annotation key owned by the operator.
const Domain = "kafka.imamik.io/"

// Standard label keys for operator-owned resources.
const (
	// KeyCluster identifies which KafkaCluster a resource belongs to
	KeyCluster = Domain + "cluster"

	// KeyRole identifies the component (kafka, zookeeper, entity-operator, kafka-exporter)
	KeyRole = Domain + "role"

	// KeyPodName pins a per-replica resource to one pod
	KeyPodName = Domain + "pod-name"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "app.kubernetes.io/managed-by"

	// KeyName and KeyInstance follow the recommended app.kubernetes.io labels
	KeyName     = "app.kubernetes.io/name"
	KeyInstance = "app.kubernetes.io/instance"
)

// Role values
const (
	RoleKafka          = "kafka"
	RoleZookeeper      = "zookeeper"
	RoleEntityOperator = "entity-operator"
	RoleKafkaExporter  = "kafka-exporter"
)

// Annotation keys. The restart triggers are stamped on pod templates so that a
// change in them rolls the pods.
const (
	AnnotationConfigHash          = Domain + "config-hash"
	AnnotationClusterCAGeneration = Domain + "cluster-ca-generation"
	AnnotationClientsCAGeneration = Domain + "clients-ca-generation"
	AnnotationCertsHash           = Domain + "certs-hash"

	// AnnotationDeleteClaim on a claim allows deleting it when its replica is removed
	AnnotationDeleteClaim = Domain + "delete-claim"
)

// RestartAnnotations lists the pod template annotations that force a rolling restart.
var RestartAnnotations = []string{
	AnnotationConfigHash,
	AnnotationClusterCAGeneration,
	AnnotationClientsCAGeneration,
	AnnotationCertsHash,
}

// ManagedByOperator is the managed-by value stamped on every owned resource.
const ManagedByOperator = "kafka-operator"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the cluster name pre-set.
func NewLabelBuilder(clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterName,
			KeyInstance:  clusterName,
			KeyManagedBy: ManagedByOperator,
		},
	}
}

// WithRole adds the component role and the matching app name.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	lb.labels[KeyName] = role
	return lb
}

// WithPodName pins the labels to one replica.
func (lb *LabelBuilder) WithPodName(pod string) *LabelBuilder {
	lb.labels[KeyPodName] = pod
	return lb
}

// Merge adds all labels from the provided map. Operator keys win over extra keys.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if _, reserved := lb.labels[k]; reserved {
			continue
		}
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// Selector returns the minimal label set that selects a role's pods.
// It must stay stable across operator versions since StatefulSet selectors are immutable.
func Selector(clusterName, role string) map[string]string {
	return map[string]string{
		KeyCluster: clusterName,
		KeyRole:    role,
	}
}

// SelectorForCluster returns a label selector string for all resources in a cluster.
func SelectorForCluster(clusterName string) string {
	return KeyCluster + "=" + clusterName
}

// IsOperatorKey reports whether a label or annotation key is owned by the operator.
func IsOperatorKey(key string) bool {
	return strings.HasPrefix(key, Domain)
}
