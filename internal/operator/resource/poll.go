package resource

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/imamik/kafka-operator/internal/util/retry"
)

// ConditionFunc reports whether a wait is over.
type ConditionFunc = wait.ConditionWithContextFunc

// poller waits on conditions using an injectable clock so timeouts can be
// driven by a fake clock in tests.
type poller struct {
	clock    clock.Clock
	interval time.Duration
}

// waitFor polls cond every interval until it returns true, returns an error,
// or timeout elapses. A timeout is a transient error.
func (p poller) waitFor(ctx context.Context, what string, timeout time.Duration, cond ConditionFunc) error {
	deadline := p.clock.Now().Add(timeout)
	timer := wait.Backoff{Duration: p.interval}.DelayFunc().Timer(p.clock)
	defer timer.Stop()

	for fired := false; ; fired = true {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !p.clock.Now().Before(deadline) {
			return retry.Transientf("timed out after %s waiting for %s", timeout, what)
		}

		if fired {
			timer.Next()
		}
		select {
		case <-ctx.Done():
			return retry.Transient(fmt.Errorf("stopped waiting for %s: %w", what, ctx.Err()))
		case <-timer.C():
		}
	}
}
