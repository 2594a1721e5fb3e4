// Package async runs independent reconciliation steps concurrently.
//
// [RunParallel] starts every task, waits for all of them, and reports the
// first failure as a [TaskError] naming the task, so callers can record
// which step failed while still letting sibling steps finish.
package async
