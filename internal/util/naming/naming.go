package naming

import "fmt"

// Workload names. Pod and per-replica names are derived from these.

func KafkaStatefulSet(cluster string) string {
	return fmt.Sprintf("%s-kafka", cluster)
}

func ZookeeperStatefulSet(cluster string) string {
	return fmt.Sprintf("%s-zookeeper", cluster)
}

func EntityOperator(cluster string) string {
	return fmt.Sprintf("%s-entity-operator", cluster)
}

func KafkaExporter(cluster string) string {
	return fmt.Sprintf("%s-kafka-exporter", cluster)
}

// Pod returns the name of replica index of a StatefulSet.
func Pod(statefulSet string, index int32) string {
	return fmt.Sprintf("%s-%d", statefulSet, index)
}

// DataClaim returns the claim name the StatefulSet controller binds to a pod.
func DataClaim(pod string) string {
	return fmt.Sprintf("data-%s", pod)
}

// Services.

func KafkaBootstrapService(cluster string) string {
	return fmt.Sprintf("%s-kafka-bootstrap", cluster)
}

func KafkaHeadlessService(cluster string) string {
	return fmt.Sprintf("%s-kafka-brokers", cluster)
}

// KafkaExternalBootstrapService exposes a nodeport listener.
func KafkaExternalBootstrapService(cluster, listener string) string {
	return fmt.Sprintf("%s-kafka-%s-bootstrap", cluster, listener)
}

// KafkaBrokerService exposes one broker on a nodeport listener.
func KafkaBrokerService(cluster, listener string, index int32) string {
	return fmt.Sprintf("%s-kafka-%s-%d", cluster, listener, index)
}

func ZookeeperClientService(cluster string) string {
	return fmt.Sprintf("%s-zookeeper-client", cluster)
}

func ZookeeperHeadlessService(cluster string) string {
	return fmt.Sprintf("%s-zookeeper-nodes", cluster)
}

// Configuration and policy objects share the workload name.

func ConfigMap(workload string) string {
	return fmt.Sprintf("%s-config", workload)
}

func PodDisruptionBudget(workload string) string {
	return workload
}

func NetworkPolicy(workload string) string {
	return fmt.Sprintf("%s-network-policy", workload)
}

// Secrets.

func ClusterCACert(cluster string) string {
	return fmt.Sprintf("%s-cluster-ca-cert", cluster)
}

func ClusterCAKey(cluster string) string {
	return fmt.Sprintf("%s-cluster-ca", cluster)
}

func ClientsCACert(cluster string) string {
	return fmt.Sprintf("%s-clients-ca-cert", cluster)
}

func ClientsCAKey(cluster string) string {
	return fmt.Sprintf("%s-clients-ca", cluster)
}

func KafkaBrokersSecret(cluster string) string {
	return fmt.Sprintf("%s-kafka-brokers", cluster)
}

func ZookeeperNodesSecret(cluster string) string {
	return fmt.Sprintf("%s-zookeeper-nodes", cluster)
}

func ClusterOperatorSecret(cluster string) string {
	return fmt.Sprintf("%s-cluster-operator-certs", cluster)
}

func EntityOperatorSecret(cluster string) string {
	return fmt.Sprintf("%s-entity-operator-certs", cluster)
}

func KafkaExporterSecret(cluster string) string {
	return fmt.Sprintf("%s-kafka-exporter-certs", cluster)
}
