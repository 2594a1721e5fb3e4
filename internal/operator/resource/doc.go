// Package resource implements the per-kind "ensure this object matches its
// desired state" primitive used by every reconciliation step.
//
// An [Operator] compares the live object with the desired one and performs
// at most one write: create, merge patch under optimistic lock, or delete.
// It never retries; conflicts and other retryable API errors are returned
// classified as transient so the caller can decide when to try again.
//
// [StatefulSetOperator], [PodOperator] and [ServiceOperator] add scaling,
// restart and readiness helpers on top of the generic operator, and
// [Supplier] bundles one operator per kind the controller manages.
package resource
