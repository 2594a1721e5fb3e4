package async

import (
	"context"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// TaskError reports which task failed.
type TaskError struct {
	Name string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("failed to reconcile %s: %v", e.Name, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// RunParallel executes multiple tasks in parallel and returns the first error encountered.
// All tasks are started concurrently, and the function waits for all to complete.
// A failing task never cancels its siblings.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "services", Func: s.reconcileServices},
//	    {Name: "networkPolicies", Func: s.reconcileNetworkPolicies},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	resultChan := make(chan *TaskError, len(tasks))

	for _, task := range tasks {
		go func() {
			if err := task.Func(ctx); err != nil {
				resultChan <- &TaskError{Name: task.Name, Err: err}
				return
			}
			resultChan <- nil
		}()
	}

	var firstError *TaskError
	for range len(tasks) {
		if res := <-resultChan; res != nil && firstError == nil {
			firstError = res
		}
	}

	if firstError == nil {
		return nil
	}
	return firstError
}
