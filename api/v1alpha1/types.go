// Package v1alpha1 contains API Schema definitions for the kafka.imamik.io v1alpha1 API group
// +kubebuilder:object:generate=true
// +groupName=kafka.imamik.io
package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// KafkaClusterSpec defines the desired state of a Kafka cluster and its coordination ensemble.
type KafkaClusterSpec struct {
	// Kafka configures the broker role
	Kafka KafkaSpec `json:"kafka"`

	// Zookeeper configures the coordination ensemble
	Zookeeper ZookeeperSpec `json:"zookeeper"`

	// ClusterCA configures the CA that signs broker, node and operator certificates
	// +optional
	ClusterCA *CertificateAuthoritySpec `json:"clusterCa,omitempty"`

	// ClientsCA configures the CA trusted for client authentication
	// +optional
	ClientsCA *CertificateAuthoritySpec `json:"clientsCa,omitempty"`

	// EntityOperator deploys the topic/user entity operator when set
	// +optional
	EntityOperator *EntityOperatorSpec `json:"entityOperator,omitempty"`

	// KafkaExporter deploys the lag exporter when set
	// +optional
	KafkaExporter *KafkaExporterSpec `json:"kafkaExporter,omitempty"`

	// Paused stops the operator from reconciling this cluster
	// +optional
	Paused bool `json:"paused,omitempty"`
}

// KafkaSpec defines the broker role.
type KafkaSpec struct {
	// Replicas is the number of brokers
	// +kubebuilder:validation:Minimum=1
	Replicas int32 `json:"replicas"`

	// Image overrides the operator's default broker image
	// +optional
	Image string `json:"image,omitempty"`

	// Version is the Kafka version the brokers run
	// +optional
	Version string `json:"version,omitempty"`

	// Storage configures broker data volumes
	Storage StorageSpec `json:"storage"`

	// Listeners configures how clients reach the brokers
	// +optional
	Listeners []ListenerSpec `json:"listeners,omitempty"`

	// Config holds broker properties rendered into server.properties
	// +optional
	Config map[string]string `json:"config,omitempty"`

	// Logging holds logger levels rendered into the logging configuration
	// +optional
	Logging map[string]string `json:"logging,omitempty"`

	// Metrics holds exporter rules rendered into the metrics configuration
	// +optional
	Metrics map[string]string `json:"metrics,omitempty"`

	// Resources sets container resource requests and limits
	// +optional
	Resources corev1.ResourceRequirements `json:"resources,omitempty"`

	// JvmOptions sets heap sizing
	// +optional
	JvmOptions *JvmOptions `json:"jvmOptions,omitempty"`
}

// ZookeeperSpec defines the coordination ensemble.
type ZookeeperSpec struct {
	// Replicas is the number of ensemble members
	// +kubebuilder:validation:Minimum=1
	Replicas int32 `json:"replicas"`

	// +optional
	Image string `json:"image,omitempty"`

	Storage StorageSpec `json:"storage"`

	// +optional
	Config map[string]string `json:"config,omitempty"`

	// +optional
	Logging map[string]string `json:"logging,omitempty"`

	// +optional
	Metrics map[string]string `json:"metrics,omitempty"`

	// +optional
	Resources corev1.ResourceRequirements `json:"resources,omitempty"`

	// +optional
	JvmOptions *JvmOptions `json:"jvmOptions,omitempty"`
}

// StorageType selects how a role stores its data.
type StorageType string

const (
	// StorageTypeEphemeral uses an emptyDir volume
	StorageTypeEphemeral StorageType = "ephemeral"
	// StorageTypePersistentClaim uses one PersistentVolumeClaim per replica
	StorageTypePersistentClaim StorageType = "persistent-claim"
)

// StorageSpec configures data volumes for a role.
type StorageSpec struct {
	// +kubebuilder:validation:Enum=ephemeral;persistent-claim
	Type StorageType `json:"type"`

	// Size is the requested claim size (e.g., 100Gi)
	// +optional
	Size string `json:"size,omitempty"`

	// Class is the storage class of the claim
	// +optional
	Class string `json:"class,omitempty"`

	// DeleteClaim deletes the claim when its replica is removed
	// +optional
	DeleteClaim bool `json:"deleteClaim,omitempty"`
}

// ListenerType selects how a listener is exposed.
type ListenerType string

const (
	ListenerTypeInternal ListenerType = "internal"
	ListenerTypeNodePort ListenerType = "nodeport"
)

// ListenerSpec configures one broker listener.
type ListenerSpec struct {
	// +kubebuilder:validation:Pattern=`^[a-z0-9]{1,11}$`
	Name string `json:"name"`

	// +kubebuilder:validation:Minimum=9092
	Port int32 `json:"port"`

	// +kubebuilder:validation:Enum=internal;nodeport
	Type ListenerType `json:"type"`

	// +optional
	TLS bool `json:"tls,omitempty"`

	// Authentication is the client authentication mechanism
	// +kubebuilder:validation:Enum="";tls;scram-sha-512
	// +optional
	Authentication string `json:"authentication,omitempty"`
}

// JvmOptions sets JVM heap sizing.
type JvmOptions struct {
	// +optional
	Xms string `json:"xms,omitempty"`
	// +optional
	Xmx string `json:"xmx,omitempty"`
}

// CertificateExpirationPolicy controls what happens when a CA certificate nears expiry.
type CertificateExpirationPolicy string

const (
	// RenewCertificate issues a new certificate for the existing key
	RenewCertificate CertificateExpirationPolicy = "renew-certificate"
	// ReplaceKey generates a new key and certificate
	ReplaceKey CertificateExpirationPolicy = "replace-key"
)

// CertificateAuthoritySpec configures a certificate authority.
type CertificateAuthoritySpec struct {
	// GenerateCertificateAuthority lets the operator own the CA; when false the user supplies it
	// +optional
	GenerateCertificateAuthority *bool `json:"generateCertificateAuthority,omitempty"`

	// ValidityDays is the CA certificate validity
	// +kubebuilder:validation:Minimum=1
	// +optional
	ValidityDays int32 `json:"validityDays,omitempty"`

	// RenewalDays is how long before expiry the certificate is renewed
	// +kubebuilder:validation:Minimum=1
	// +optional
	RenewalDays int32 `json:"renewalDays,omitempty"`

	// +kubebuilder:validation:Enum=renew-certificate;replace-key
	// +optional
	CertificateExpirationPolicy CertificateExpirationPolicy `json:"certificateExpirationPolicy,omitempty"`

	// OverlapWindow is how long the previous CA certificate stays trusted after a key replacement
	// +optional
	OverlapWindow *metav1.Duration `json:"overlapWindow,omitempty"`
}

// EntityOperatorSpec configures the entity operator deployment.
type EntityOperatorSpec struct {
	// +optional
	Image string `json:"image,omitempty"`

	// WatchedNamespace defaults to the cluster namespace
	// +optional
	WatchedNamespace string `json:"watchedNamespace,omitempty"`
}

// KafkaExporterSpec configures the lag exporter deployment.
type KafkaExporterSpec struct {
	// +optional
	Image string `json:"image,omitempty"`

	// +optional
	TopicRegex string `json:"topicRegex,omitempty"`

	// +optional
	GroupRegex string `json:"groupRegex,omitempty"`
}

// KafkaClusterStatus defines the observed state of a KafkaCluster.
type KafkaClusterStatus struct {
	// Phase is the overall cluster phase
	// +optional
	Phase ClusterPhase `json:"phase,omitempty"`

	// ObservedGeneration is the spec generation of the last reconciliation attempt
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions represent the latest available observations
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// +optional
	Kafka RoleStatus `json:"kafka,omitempty"`

	// +optional
	Zookeeper RoleStatus `json:"zookeeper,omitempty"`

	// Listeners reports the bootstrap address of each listener
	// +optional
	Listeners []ListenerStatus `json:"listeners,omitempty"`

	// +optional
	ClusterCAGeneration int64 `json:"clusterCaGeneration,omitempty"`

	// +optional
	ClientsCAGeneration int64 `json:"clientsCaGeneration,omitempty"`

	// LastFailedStep names the reconciliation step that failed in the last attempt
	// +optional
	LastFailedStep string `json:"lastFailedStep,omitempty"`

	// Message is a human readable summary of the last attempt
	// +optional
	Message string `json:"message,omitempty"`

	// +optional
	LastReconcileTime *metav1.Time `json:"lastReconcileTime,omitempty"`
}

// RoleStatus reports replica counts for one role.
type RoleStatus struct {
	Replicas      int32 `json:"replicas"`
	ReadyReplicas int32 `json:"readyReplicas"`
}

// ListenerStatus reports how to reach one listener.
type ListenerStatus struct {
	Name             string       `json:"name"`
	Type             ListenerType `json:"type"`
	BootstrapServers string       `json:"bootstrapServers"`
}

// ClusterPhase represents the overall cluster state.
type ClusterPhase string

const (
	// ClusterPhasePending means the first reconciliation has not finished
	ClusterPhasePending ClusterPhase = "Pending"
	// ClusterPhaseReady means every resource matches the spec and all replicas are ready
	ClusterPhaseReady ClusterPhase = "Ready"
	// ClusterPhaseNotReady means the last attempt failed with a retryable error
	ClusterPhaseNotReady ClusterPhase = "NotReady"
	// ClusterPhaseFailed means the spec cannot be reconciled until it changes
	ClusterPhaseFailed ClusterPhase = "Failed"
	// ClusterPhasePaused means reconciliation is suspended
	ClusterPhasePaused ClusterPhase = "Paused"
)

// Condition types for KafkaCluster
const (
	// ConditionReady indicates the last reconciliation succeeded
	ConditionReady = "Ready"
	// ConditionCertificatesReady indicates CA and leaf certificates are current
	ConditionCertificatesReady = "CertificatesReady"
	// ConditionResourcesReady indicates config, network and storage resources are reconciled
	ConditionResourcesReady = "ResourcesReady"
	// ConditionWorkloadsReady indicates all replicas are ready
	ConditionWorkloadsReady = "WorkloadsReady"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=kc
// +kubebuilder:printcolumn:name="Kafka",type=integer,JSONPath=`.spec.kafka.replicas`
// +kubebuilder:printcolumn:name="Zookeeper",type=integer,JSONPath=`.spec.zookeeper.replicas`
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// KafkaCluster is the Schema for the kafkaclusters API.
type KafkaCluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   KafkaClusterSpec   `json:"spec,omitempty"`
	Status KafkaClusterStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// KafkaClusterList contains a list of KafkaCluster.
type KafkaClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []KafkaCluster `json:"items"`
}

// GenerateCA reports whether the operator owns the CA material.
func (s *CertificateAuthoritySpec) GenerateCA() bool {
	if s == nil || s.GenerateCertificateAuthority == nil {
		return true
	}
	return *s.GenerateCertificateAuthority
}
