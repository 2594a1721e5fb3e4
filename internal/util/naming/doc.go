// Package naming derives the names of resources owned by a KafkaCluster.
//
// Every name is a pure function of the cluster name (and replica index where
// applicable), so the reconciler can find resources it created on earlier
// passes without storing references.
package naming
