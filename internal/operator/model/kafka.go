package model

import (
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/naming"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// Broker ports the operator reserves next to the user listeners.
const (
	ControlPlanePort int32 = 9090
	ReplicationPort  int32 = 9091
	MetricsPort      int32 = 9404

	kafkaDataPath = "/var/lib/kafka/data"
)

func reservedPort(p int32) bool {
	return p == ControlPlanePort || p == ReplicationPort || p == MetricsPort
}

func validateListeners(listeners []v1alpha1.ListenerSpec) error {
	names := map[string]bool{}
	ports := map[int32]bool{}
	for _, l := range listeners {
		switch {
		case l.Name == "":
			return retry.Configurationf("listener name must not be empty")
		case names[l.Name]:
			return retry.Configurationf("listener name %q is used twice", l.Name)
		case ports[l.Port]:
			return retry.Configurationf("listener port %d is used twice", l.Port)
		case reservedPort(l.Port):
			return retry.Configurationf("listener %q uses reserved port %d", l.Name, l.Port)
		case l.Type != v1alpha1.ListenerTypeInternal && l.Type != v1alpha1.ListenerTypeNodePort:
			return retry.Configurationf("listener %q has unsupported type %q", l.Name, l.Type)
		case l.Authentication != "" && l.Authentication != "tls" && l.Authentication != "scram-sha-512":
			return retry.Configurationf("listener %q has unsupported authentication %q", l.Name, l.Authentication)
		case l.Authentication == "tls" && !l.TLS:
			return retry.Configurationf("listener %q uses tls authentication but has tls disabled", l.Name)
		}
		names[l.Name] = true
		ports[l.Port] = true
	}
	return nil
}

func validate(cluster *v1alpha1.KafkaCluster) error {
	spec := cluster.Spec
	if spec.Kafka.Replicas < 1 {
		return retry.Configurationf("kafka replicas must be at least 1, got %d", spec.Kafka.Replicas)
	}
	if spec.Zookeeper.Replicas < 1 {
		return retry.Configurationf("zookeeper replicas must be at least 1, got %d", spec.Zookeeper.Replicas)
	}
	if err := validateStorage(labels.RoleKafka, spec.Kafka.Storage); err != nil {
		return err
	}
	if err := validateStorage(labels.RoleZookeeper, spec.Zookeeper.Storage); err != nil {
		return err
	}
	return validateListeners(spec.Kafka.Listeners)
}

func listenerID(l v1alpha1.ListenerSpec) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(l.Name), l.Port)
}

func securityProtocol(l v1alpha1.ListenerSpec) string {
	switch {
	case l.Authentication == "scram-sha-512" && l.TLS:
		return "SASL_SSL"
	case l.Authentication == "scram-sha-512":
		return "SASL_PLAINTEXT"
	case l.TLS:
		return "SSL"
	default:
		return "PLAINTEXT"
	}
}

func (b *builder) kafkaProperties() map[string]string {
	spec := b.cluster.Spec.Kafka
	replication := fmt.Sprintf("REPLICATION-%d", ReplicationPort)
	control := fmt.Sprintf("CONTROLPLANE-%d", ControlPlanePort)

	listeners := []string{
		fmt.Sprintf("%s://0.0.0.0:%d", control, ControlPlanePort),
		fmt.Sprintf("%s://0.0.0.0:%d", replication, ReplicationPort),
	}
	protocols := []string{control + ":SSL", replication + ":SSL"}
	props := map[string]string{
		"zookeeper.connect":                     fmt.Sprintf("%s:%d", naming.ZookeeperClientService(b.cluster.Name), ZookeeperClientPort),
		"inter.broker.listener.name":            replication,
		"control.plane.listener.name":           control,
		"log.dirs":                              kafkaDataPath,
		"ssl.truststore.location":               "/tmp/kafka/cluster.truststore.p12",
		"ssl.keystore.location":                 "/tmp/kafka/cluster.keystore.p12",
		"ssl.endpoint.identification.algorithm": "HTTPS",
	}
	for _, l := range spec.Listeners {
		id := listenerID(l)
		listeners = append(listeners, fmt.Sprintf("%s://0.0.0.0:%d", id, l.Port))
		protocols = append(protocols, id+":"+securityProtocol(l))
		prefix := "listener.name." + strings.ToLower(id)
		switch l.Authentication {
		case "tls":
			props[prefix+".ssl.client.auth"] = "required"
		case "scram-sha-512":
			props[prefix+".sasl.enabled.mechanisms"] = "SCRAM-SHA-512"
		}
	}
	props["listeners"] = strings.Join(listeners, ",")
	props["listener.security.protocol.map"] = strings.Join(protocols, ",")
	return props
}

func (b *builder) kafka() (*Component, error) {
	spec := b.cluster.Spec.Kafka
	cluster := b.cluster.Name
	role := labels.RoleKafka
	name := naming.KafkaStatefulSet(cluster)
	headless := naming.KafkaHeadlessService(cluster)
	bootstrap := naming.KafkaBootstrapService(cluster)

	data := map[string]string{"server.properties": renderProperties(b.kafkaProperties(), spec.Config)}
	logging, err := renderYAML("logging", spec.Logging)
	if err != nil {
		return nil, err
	}
	if logging != "" {
		data["logging.yaml"] = logging
	}
	metrics, err := renderYAML("metrics", spec.Metrics)
	if err != nil {
		return nil, err
	}
	if metrics != "" {
		data["metrics.yaml"] = metrics
	}
	cm := &corev1.ConfigMap{ObjectMeta: b.meta(naming.ConfigMap(name), role), Data: data}

	// Services
	internalPorts := []corev1.ServicePort{servicePort("tcp-replication", ReplicationPort)}
	headlessPorts := []corev1.ServicePort{
		servicePort("tcp-ctrlplane", ControlPlanePort),
		servicePort("tcp-replication", ReplicationPort),
	}
	containerPorts := []corev1.ContainerPort{
		containerPort("tcp-ctrlplane", ControlPlanePort),
		containerPort("tcp-replication", ReplicationPort),
	}
	var openPorts []int32
	var nodePortListeners []v1alpha1.ListenerSpec
	for _, l := range spec.Listeners {
		portName := "tcp-" + l.Name
		containerPorts = append(containerPorts, containerPort(portName, l.Port))
		openPorts = append(openPorts, l.Port)
		if l.Type == v1alpha1.ListenerTypeNodePort {
			nodePortListeners = append(nodePortListeners, l)
			continue
		}
		internalPorts = append(internalPorts, servicePort(portName, l.Port))
		headlessPorts = append(headlessPorts, servicePort(portName, l.Port))
	}
	if metrics != "" {
		containerPorts = append(containerPorts, containerPort("tcp-prometheus", MetricsPort))
	}
	services := []*corev1.Service{
		b.service(bootstrap, role, corev1.ServiceTypeClusterIP, internalPorts, nil),
		b.headlessService(headless, role, headlessPorts),
	}
	for _, l := range nodePortListeners {
		services = append(services, b.service(naming.KafkaExternalBootstrapService(cluster, l.Name), role,
			corev1.ServiceTypeNodePort, []corev1.ServicePort{servicePort("tcp-"+l.Name, l.Port)}, nil))
	}

	internal := []int32{ControlPlanePort, ReplicationPort}
	if metrics != "" {
		internal = append(internal, MetricsPort)
	}

	podLabels := b.podLabels(role)
	env := []corev1.EnvVar{
		podNameEnv(),
		{Name: "KAFKA_METRICS_ENABLED", Value: fmt.Sprintf("%t", metrics != "")},
	}
	if heap := heapOpts(spec.JvmOptions); heap != "" {
		env = append(env, corev1.EnvVar{Name: "KAFKA_HEAP_OPTS", Value: heap})
	}
	volumes := []corev1.Volume{
		configMapVolume(configVolume, cm.Name),
		secretVolume(nodeCertsVolume, naming.KafkaBrokersSecret(cluster)),
		secretVolume(clusterCAVolume, naming.ClusterCACert(cluster)),
		secretVolume(clientsCAVolume, naming.ClientsCACert(cluster)),
	}
	if v := dataVolumeSource(spec.Storage); v != nil {
		volumes = append(volumes, *v)
	}
	image := spec.Image
	if image == "" {
		image = b.images.Kafka
	}

	podSpec := corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:      role,
			Image:     image,
			Command:   []string{"/opt/kafka/kafka_run.sh"},
			Env:       env,
			Ports:     containerPorts,
			Resources: spec.Resources,
			VolumeMounts: []corev1.VolumeMount{
				{Name: dataVolume, MountPath: kafkaDataPath},
				{Name: configVolume, MountPath: configMountPath},
				{Name: nodeCertsVolume, MountPath: nodeCertsMountPath},
				{Name: clusterCAVolume, MountPath: clusterCAMountPath},
				{Name: clientsCAVolume, MountPath: clientsCAMountPath},
			},
			ReadinessProbe: tcpProbe(ReplicationPort, 15),
			LivenessProbe:  tcpProbe(ReplicationPort, 15),
		}},
		Volumes: volumes,
	}
	withPodDefaults(&podSpec)

	sts := &appsv1.StatefulSet{
		ObjectMeta: b.meta(name, role),
		Spec: appsv1.StatefulSetSpec{
			Replicas:            ptr.To(spec.Replicas),
			ServiceName:         headless,
			Selector:            &metav1.LabelSelector{MatchLabels: labels.Selector(cluster, role)},
			PodManagementPolicy: appsv1.OrderedReadyPodManagement,
			UpdateStrategy:      appsv1.StatefulSetUpdateStrategy{Type: appsv1.OnDeleteStatefulSetStrategyType},
			PersistentVolumeClaimRetentionPolicy: &appsv1.StatefulSetPersistentVolumeClaimRetentionPolicy{
				WhenDeleted: appsv1.RetainPersistentVolumeClaimRetentionPolicyType,
				WhenScaled:  appsv1.RetainPersistentVolumeClaimRetentionPolicyType,
			},
			VolumeClaimTemplates: claimTemplates(spec.Storage, labels.Selector(cluster, role)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      podLabels,
					Annotations: map[string]string{labels.AnnotationConfigHash: hashData(data)},
				},
				Spec: podSpec,
			},
		},
	}

	c := &Component{
		Role:                role,
		Replicas:            spec.Replicas,
		Storage:             spec.Storage,
		ConfigMap:           cm,
		Services:            services,
		StatefulSet:         sts,
		PodDisruptionBudget: b.podDisruptionBudget(name, role),
		NetworkPolicy:       b.networkPolicy(name, role, openPorts, internal),
		ReadinessService:    bootstrap,
		CertSecret:          naming.KafkaBrokersSecret(cluster),
	}
	if spec.Storage.Type == v1alpha1.StorageTypePersistentClaim {
		c.claim = func(i int32) *corev1.PersistentVolumeClaim {
			return b.claim(role, naming.Pod(name, i), spec.Storage)
		}
	}
	if len(nodePortListeners) > 0 {
		c.replicaServices = func(i int32) []*corev1.Service {
			pod := naming.Pod(name, i)
			out := make([]*corev1.Service, 0, len(nodePortListeners))
			for _, l := range nodePortListeners {
				svc := b.service(naming.KafkaBrokerService(cluster, l.Name, i), role, corev1.ServiceTypeNodePort,
					[]corev1.ServicePort{servicePort("tcp-"+l.Name, l.Port)}, map[string]string{podNameLabel: pod})
				svc.Labels[labels.KeyPodName] = pod
				out = append(out, svc)
			}
			return out
		}
	}
	c.identity = func(i int32) certs.Identity {
		pod := naming.Pod(name, i)
		return certs.Identity{
			Name:       pod,
			CommonName: pod,
			DNSNames: []string{
				b.podDNS(pod, headless),
				b.podDNS(pod, headless) + ".cluster.local",
				bootstrap,
				b.serviceDNS(bootstrap),
			},
		}
	}
	return c, nil
}

// listenerStatus reports the bootstrap address of every listener.
func (b *builder) listenerStatus() []v1alpha1.ListenerStatus {
	cluster := b.cluster.Name
	out := make([]v1alpha1.ListenerStatus, 0, len(b.cluster.Spec.Kafka.Listeners))
	for _, l := range b.cluster.Spec.Kafka.Listeners {
		svc := naming.KafkaBootstrapService(cluster)
		if l.Type == v1alpha1.ListenerTypeNodePort {
			svc = naming.KafkaExternalBootstrapService(cluster, l.Name)
		}
		out = append(out, v1alpha1.ListenerStatus{
			Name:             l.Name,
			Type:             l.Type,
			BootstrapServers: fmt.Sprintf("%s:%d", b.serviceDNS(svc), l.Port),
		})
	}
	return out
}
