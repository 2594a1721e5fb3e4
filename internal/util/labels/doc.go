// Package labels provides consistent labeling for the Kubernetes resources
// owned by a KafkaCluster.
//
// All operator labels use the kafka.imamik.io domain prefix and are built
// with a [LabelBuilder] that sets cluster, role, and manager identification.
// Selectors derived from the same keys are used to list pods and claims.
package labels
