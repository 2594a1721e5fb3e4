// Package controller implements the reconciliation of KafkaCluster custom
// resources.
//
// One reconciliation pass runs a fixed sequence of steps for a single cluster:
// desired state -> certificate authorities -> leaf certificates -> config,
// services, network policies and disruption budgets -> storage claims -> per
// role workload (classify, rolling restart, scale, quiescence) -> auxiliary
// deployments -> status. A failing step ends the pass; everything applied so
// far stays in place and the next pass converges.
//
// The Driver runs passes for many clusters concurrently and guarantees that
// at most one pass per cluster is in flight. A request for a cluster whose
// pass is running is coalesced into a single follow-up pass.
package controller
