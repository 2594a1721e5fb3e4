package model

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/naming"
)

const (
	entityOperatorHealthPort int32 = 8080
	kafkaExporterPort        int32 = 9308
)

// deployment wraps a single replica pod spec with the defaults the API server
// would otherwise fill in.
func (b *builder) deployment(name, role string, podSpec corev1.PodSpec) *appsv1.Deployment {
	withPodDefaults(&podSpec)
	return &appsv1.Deployment{
		ObjectMeta: b.meta(name, role),
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{MatchLabels: labels.Selector(b.cluster.Name, role)},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxUnavailable: ptr.To(intstr.FromString("25%")),
					MaxSurge:       ptr.To(intstr.FromString("25%")),
				},
			},
			RevisionHistoryLimit:    ptr.To(int32(10)),
			ProgressDeadlineSeconds: ptr.To(int32(600)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: b.podLabels(role)},
				Spec:       podSpec,
			},
		},
	}
}

func (b *builder) bootstrapAddress() string {
	return fmt.Sprintf("%s:%d", b.serviceDNS(naming.KafkaBootstrapService(b.cluster.Name)), ReplicationPort)
}

func (b *builder) entityOperator() *appsv1.Deployment {
	spec := b.cluster.Spec.EntityOperator
	if spec == nil {
		return nil
	}
	cluster := b.cluster.Name
	image := spec.Image
	if image == "" {
		image = b.images.EntityOperator
	}
	watched := spec.WatchedNamespace
	if watched == "" {
		watched = b.cluster.Namespace
	}
	return b.deployment(naming.EntityOperator(cluster), labels.RoleEntityOperator, corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:    labels.RoleEntityOperator,
			Image:   image,
			Command: []string{"/opt/strimzi/bin/topic_operator_run.sh"},
			Env: []corev1.EnvVar{
				{Name: "STRIMZI_KAFKA_BOOTSTRAP_SERVERS", Value: b.bootstrapAddress()},
				{Name: "STRIMZI_NAMESPACE", Value: watched},
				{Name: "STRIMZI_RESOURCE_LABELS", Value: labels.SelectorForCluster(cluster)},
			},
			Ports: []corev1.ContainerPort{containerPort("healthcheck", entityOperatorHealthPort)},
			VolumeMounts: []corev1.VolumeMount{
				{Name: nodeCertsVolume, MountPath: nodeCertsMountPath},
				{Name: clusterCAVolume, MountPath: clusterCAMountPath},
			},
			ReadinessProbe: tcpProbe(entityOperatorHealthPort, 10),
			LivenessProbe:  tcpProbe(entityOperatorHealthPort, 10),
		}},
		Volumes: []corev1.Volume{
			secretVolume(nodeCertsVolume, naming.EntityOperatorSecret(cluster)),
			secretVolume(clusterCAVolume, naming.ClusterCACert(cluster)),
		},
	})
}

func (b *builder) kafkaExporter() *appsv1.Deployment {
	spec := b.cluster.Spec.KafkaExporter
	if spec == nil {
		return nil
	}
	cluster := b.cluster.Name
	image := spec.Image
	if image == "" {
		image = b.images.KafkaExporter
	}
	topics, groups := spec.TopicRegex, spec.GroupRegex
	if topics == "" {
		topics = ".*"
	}
	if groups == "" {
		groups = ".*"
	}
	return b.deployment(naming.KafkaExporter(cluster), labels.RoleKafkaExporter, corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:    labels.RoleKafkaExporter,
			Image:   image,
			Command: []string{"/opt/kafka-exporter/kafka_exporter_run.sh"},
			Env: []corev1.EnvVar{
				{Name: "KAFKA_EXPORTER_KAFKA_SERVER", Value: b.bootstrapAddress()},
				{Name: "KAFKA_EXPORTER_TOPIC_REGEX", Value: topics},
				{Name: "KAFKA_EXPORTER_GROUP_REGEX", Value: groups},
			},
			Ports: []corev1.ContainerPort{containerPort("tcp-prometheus", kafkaExporterPort)},
			VolumeMounts: []corev1.VolumeMount{
				{Name: nodeCertsVolume, MountPath: nodeCertsMountPath},
				{Name: clusterCAVolume, MountPath: clusterCAMountPath},
			},
			ReadinessProbe: tcpProbe(kafkaExporterPort, 15),
			LivenessProbe:  tcpProbe(kafkaExporterPort, 15),
		}},
		Volumes: []corev1.Volume{
			secretVolume(nodeCertsVolume, naming.KafkaExporterSecret(cluster)),
			secretVolume(clusterCAVolume, naming.ClusterCACert(cluster)),
		},
	})
}
