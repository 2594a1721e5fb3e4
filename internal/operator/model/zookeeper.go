package model

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/naming"
)

// Ensemble ports.
const (
	ZookeeperClientPort   int32 = 2181
	ZookeeperPeerPort     int32 = 2888
	ZookeeperElectionPort int32 = 3888

	zookeeperDataPath = "/var/lib/zookeeper/data"
)

// zookeeperProperties lists every ensemble member, so a replica change also
// changes the configuration of the existing members.
func (b *builder) zookeeperProperties(name, headless string, replicas int32) map[string]string {
	props := map[string]string{
		"dataDir":                         zookeeperDataPath,
		"clientPort":                      fmt.Sprintf("%d", ZookeeperClientPort),
		"tickTime":                        "2000",
		"initLimit":                       "5",
		"syncLimit":                       "2",
		"autopurge.purgeInterval":         "1",
		"reconfigEnabled":                 "true",
		"standaloneEnabled":               "false",
		"4lw.commands.whitelist":          "ruok,srvr",
		"ssl.clientAuth":                  "need",
		"sslQuorum":                       "true",
		"ssl.quorum.hostnameVerification": "true",
	}
	for i := int32(0); i < replicas; i++ {
		props[fmt.Sprintf("server.%d", i+1)] = fmt.Sprintf("%s:%d:%d:participant;127.0.0.1:%d",
			b.podDNS(naming.Pod(name, i), headless), ZookeeperPeerPort, ZookeeperElectionPort, ZookeeperClientPort)
	}
	return props
}

func (b *builder) zookeeper() (*Component, error) {
	spec := b.cluster.Spec.Zookeeper
	cluster := b.cluster.Name
	role := labels.RoleZookeeper
	name := naming.ZookeeperStatefulSet(cluster)
	headless := naming.ZookeeperHeadlessService(cluster)
	client := naming.ZookeeperClientService(cluster)

	data := map[string]string{
		"zookeeper.properties": renderProperties(b.zookeeperProperties(name, headless, spec.Replicas), spec.Config),
	}
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

	services := []*corev1.Service{
		b.service(client, role, corev1.ServiceTypeClusterIP,
			[]corev1.ServicePort{servicePort("tcp-clients", ZookeeperClientPort)}, nil),
		b.headlessService(headless, role, []corev1.ServicePort{
			servicePort("tcp-clients", ZookeeperClientPort),
			servicePort("tcp-clustering", ZookeeperPeerPort),
			servicePort("tcp-election", ZookeeperElectionPort),
		}),
	}

	ports := []corev1.ContainerPort{
		containerPort("tcp-clients", ZookeeperClientPort),
		containerPort("tcp-clustering", ZookeeperPeerPort),
		containerPort("tcp-election", ZookeeperElectionPort),
	}
	internal := []int32{ZookeeperClientPort, ZookeeperPeerPort, ZookeeperElectionPort}
	if metrics != "" {
		ports = append(ports, containerPort("tcp-prometheus", MetricsPort))
		internal = append(internal, MetricsPort)
	}

	env := []corev1.EnvVar{
		podNameEnv(),
		{Name: "ZOOKEEPER_METRICS_ENABLED", Value: fmt.Sprintf("%t", metrics != "")},
	}
	if heap := heapOpts(spec.JvmOptions); heap != "" {
		env = append(env, corev1.EnvVar{Name: "KAFKA_HEAP_OPTS", Value: heap})
	}
	volumes := []corev1.Volume{
		configMapVolume(configVolume, cm.Name),
		secretVolume(nodeCertsVolume, naming.ZookeeperNodesSecret(cluster)),
		secretVolume(clusterCAVolume, naming.ClusterCACert(cluster)),
	}
	if v := dataVolumeSource(spec.Storage); v != nil {
		volumes = append(volumes, *v)
	}
	image := spec.Image
	if image == "" {
		image = b.images.Zookeeper
	}

	podSpec := corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:      role,
			Image:     image,
			Command:   []string{"/opt/kafka/zookeeper_run.sh"},
			Env:       env,
			Ports:     ports,
			Resources: spec.Resources,
			VolumeMounts: []corev1.VolumeMount{
				{Name: dataVolume, MountPath: zookeeperDataPath},
				{Name: configVolume, MountPath: configMountPath},
				{Name: nodeCertsVolume, MountPath: nodeCertsMountPath},
				{Name: clusterCAVolume, MountPath: clusterCAMountPath},
			},
			ReadinessProbe: tcpProbe(ZookeeperClientPort, 15),
			LivenessProbe:  tcpProbe(ZookeeperClientPort, 15),
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
					Labels:      b.podLabels(role),
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
		NetworkPolicy:       b.networkPolicy(name, role, nil, internal),
		ReadinessService:    client,
		CertSecret:          naming.ZookeeperNodesSecret(cluster),
	}
	if spec.Storage.Type == v1alpha1.StorageTypePersistentClaim {
		c.claim = func(i int32) *corev1.PersistentVolumeClaim {
			return b.claim(role, naming.Pod(name, i), spec.Storage)
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
				client,
				b.serviceDNS(client),
			},
		}
	}
	return c, nil
}
