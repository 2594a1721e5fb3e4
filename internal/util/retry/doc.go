// Package retry classifies reconciliation failures by how they should be retried.
//
// [Transient] errors are retried on the next reconciliation pass,
// [Configuration] errors wait for the spec to change, and [Fatal] errors
// abort the pass and surface to the caller. Nothing in this package sleeps
// or loops; retry timing belongs to the controller's requeue policy.
package retry
