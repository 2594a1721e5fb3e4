// Package model maps a KafkaCluster to the resources that should exist for
// it. Everything here is a pure function of its inputs.
package model

import (
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/operator/config"
	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/naming"
)

// Options are the operator level inputs of Build.
type Options struct {
	Images    config.Images
	CADefault certs.Policy
}

// OptionsFromConfig derives Build options from the operator configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Images: cfg.Images,
		CADefault: certs.Policy{
			Validity:      cfg.DefaultCA.Validity,
			RenewBefore:   cfg.DefaultCA.RenewBefore,
			OverlapWindow: cfg.DefaultCA.OverlapWindow,
		},
	}
}

// DesiredResourceSet is every resource a cluster should have.
type DesiredResourceSet struct {
	Namespace   string
	ClusterName string

	ClusterCAPolicy certs.Policy
	ClientsCAPolicy certs.Policy

	Zookeeper *Component
	Kafka     *Component

	// Auxiliary deployments are nil when disabled.
	EntityOperator *appsv1.Deployment
	KafkaExporter  *appsv1.Deployment

	// CertificateSets lists the leaf secrets, including those of auxiliary
	// deployments that are disabled (with no identities) so they get deleted.
	CertificateSets []CertificateSet

	Listeners []v1alpha1.ListenerStatus

	owner metav1.OwnerReference
}

// CertificateSet is one secret of leaf certificates.
type CertificateSet struct {
	SecretName string
	Role       string
	// Disabled sets are deleted.
	Disabled   bool
	Identities []certs.Identity
}

// Component is one StatefulSet backed role with its companion resources.
type Component struct {
	Role     string
	Replicas int32
	Storage  v1alpha1.StorageSpec

	ConfigMap           *corev1.ConfigMap
	Services            []*corev1.Service
	StatefulSet         *appsv1.StatefulSet
	PodDisruptionBudget *policyv1.PodDisruptionBudget
	NetworkPolicy       *networkingv1.NetworkPolicy

	// ReadinessService is the service whose endpoints show the role serving.
	ReadinessService string
	// CertSecret holds the role's node certificates.
	CertSecret string

	claim           func(index int32) *corev1.PersistentVolumeClaim
	replicaServices func(index int32) []*corev1.Service
	identity        func(index int32) certs.Identity
}

// Name returns the StatefulSet name.
func (c *Component) Name() string {
	return c.StatefulSet.Name
}

// PodName returns the name of replica index.
func (c *Component) PodName(index int32) string {
	return naming.Pod(c.StatefulSet.Name, index)
}

// Claim returns the data claim of replica index, or nil for ephemeral storage.
func (c *Component) Claim(index int32) *corev1.PersistentVolumeClaim {
	if c.claim == nil {
		return nil
	}
	return c.claim(index)
}

// ClaimName returns the name of the data claim of replica index.
func (c *Component) ClaimName(index int32) string {
	return naming.DataClaim(c.PodName(index))
}

// ReplicaServices returns the per-replica services of index.
func (c *Component) ReplicaServices(index int32) []*corev1.Service {
	if c.replicaServices == nil {
		return nil
	}
	return c.replicaServices(index)
}

// Identities returns the leaf identities of replicas [0, replicas).
func (c *Component) Identities(replicas int32) []certs.Identity {
	ids := make([]certs.Identity, 0, replicas)
	for i := int32(0); i < replicas; i++ {
		ids = append(ids, c.identity(i))
	}
	return ids
}

// Build computes the desired resources of cluster. Invalid specs are
// Configuration errors.
func Build(cluster *v1alpha1.KafkaCluster, opts Options) (*DesiredResourceSet, error) {
	if err := validate(cluster); err != nil {
		return nil, err
	}
	clusterCA, err := certs.PolicyFor(cluster.Spec.ClusterCA, opts.CADefault)
	if err != nil {
		return nil, fmt.Errorf("invalid cluster CA: %w", err)
	}
	clientsCA, err := certs.PolicyFor(cluster.Spec.ClientsCA, opts.CADefault)
	if err != nil {
		return nil, fmt.Errorf("invalid clients CA: %w", err)
	}

	b := &builder{
		cluster: cluster,
		images:  opts.Images,
		owner:   *metav1.NewControllerRef(cluster, v1alpha1.GroupVersion.WithKind("KafkaCluster")),
	}

	zk, err := b.zookeeper()
	if err != nil {
		return nil, err
	}
	kafka, err := b.kafka()
	if err != nil {
		return nil, err
	}

	d := &DesiredResourceSet{
		Namespace:       cluster.Namespace,
		ClusterName:     cluster.Name,
		ClusterCAPolicy: clusterCA,
		ClientsCAPolicy: clientsCA,
		Zookeeper:       zk,
		Kafka:           kafka,
		EntityOperator:  b.entityOperator(),
		KafkaExporter:   b.kafkaExporter(),
		Listeners:       b.listenerStatus(),
		owner:           b.owner,
	}
	d.CertificateSets = []CertificateSet{
		{SecretName: naming.ZookeeperNodesSecret(cluster.Name), Role: labels.RoleZookeeper, Identities: zk.Identities(zk.Replicas)},
		{SecretName: naming.KafkaBrokersSecret(cluster.Name), Role: labels.RoleKafka, Identities: kafka.Identities(kafka.Replicas)},
		{SecretName: naming.ClusterOperatorSecret(cluster.Name), Identities: []certs.Identity{singleIdentity("cluster-operator")}},
		{
			SecretName: naming.EntityOperatorSecret(cluster.Name), Role: labels.RoleEntityOperator,
			Disabled: d.EntityOperator == nil, Identities: []certs.Identity{singleIdentity(labels.RoleEntityOperator)},
		},
		{
			SecretName: naming.KafkaExporterSecret(cluster.Name), Role: labels.RoleKafkaExporter,
			Disabled: d.KafkaExporter == nil, Identities: []certs.Identity{singleIdentity(labels.RoleKafkaExporter)},
		},
	}
	return d, nil
}

func singleIdentity(name string) certs.Identity {
	return certs.Identity{Name: name, CommonName: name}
}

// Components returns the StatefulSet roles in reconciliation order.
func (d *DesiredResourceSet) Components() []*Component {
	return []*Component{d.Zookeeper, d.Kafka}
}

// Meta returns owned object metadata for an auxiliary object such as a CA secret.
func (d *DesiredResourceSet) Meta(name, role string) metav1.ObjectMeta {
	lb := labels.NewLabelBuilder(d.ClusterName)
	if role != "" {
		lb.WithRole(role)
	}
	return metav1.ObjectMeta{
		Name:            name,
		Namespace:       d.Namespace,
		Labels:          lb.Build(),
		OwnerReferences: []metav1.OwnerReference{d.owner},
	}
}

// TrustState is the certificate material the pods were started with.
type TrustState struct {
	ClusterCAGeneration int64
	ClientsCAGeneration int64
	// CertsHash maps a certificate secret name to its fingerprint.
	CertsHash map[string]string
}

// WithTrust returns a copy of d whose pod templates carry t, so that a change
// of trust material rolls the pods.
func (d *DesiredResourceSet) WithTrust(t TrustState) *DesiredResourceSet {
	out := *d
	out.Zookeeper = d.Zookeeper.withTrust(t, false)
	out.Kafka = d.Kafka.withTrust(t, true)
	if d.EntityOperator != nil {
		out.EntityOperator = d.EntityOperator.DeepCopy()
		stampTrust(&out.EntityOperator.Spec.Template, t, naming.EntityOperatorSecret(d.ClusterName), false)
	}
	if d.KafkaExporter != nil {
		out.KafkaExporter = d.KafkaExporter.DeepCopy()
		stampTrust(&out.KafkaExporter.Spec.Template, t, naming.KafkaExporterSecret(d.ClusterName), false)
	}
	return &out
}

func (c *Component) withTrust(t TrustState, clients bool) *Component {
	out := *c
	out.StatefulSet = c.StatefulSet.DeepCopy()
	stampTrust(&out.StatefulSet.Spec.Template, t, c.CertSecret, clients)
	return &out
}

func stampTrust(tmpl *corev1.PodTemplateSpec, t TrustState, certSecret string, clients bool) {
	if tmpl.Annotations == nil {
		tmpl.Annotations = map[string]string{}
	}
	tmpl.Annotations[labels.AnnotationClusterCAGeneration] = strconv.FormatInt(t.ClusterCAGeneration, 10)
	if clients {
		tmpl.Annotations[labels.AnnotationClientsCAGeneration] = strconv.FormatInt(t.ClientsCAGeneration, 10)
	}
	if h := t.CertsHash[certSecret]; h != "" {
		tmpl.Annotations[labels.AnnotationCertsHash] = h
	}
}

type builder struct {
	cluster *v1alpha1.KafkaCluster
	images  config.Images
	owner   metav1.OwnerReference
}
