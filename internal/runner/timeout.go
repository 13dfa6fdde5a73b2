package runner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRunTimeout is the cancellation cause once the run deadline passes.
var ErrRunTimeout = fmt.Errorf("run timeout exceeded: %w", context.DeadlineExceeded)

// withRunTimeout bounds a whole run. Work observing the context sees
// ErrRunTimeout as its cause. timeout <= 0 means no bound.
func withRunTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}

	ctx, cancelCause := context.WithCancelCause(parent)
	timer := time.AfterFunc(timeout, func() {
		cancelCause(ErrRunTimeout)
	})

	return ctx, func() {
		timer.Stop()
		cancelCause(context.Canceled)
	}
}

// runInterrupted returns the reason ctx ended, or nil while it is live.
func runInterrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return ctx.Err()
}

// DefaultWriteTimeout bounds the final result and run metadata writes.
const DefaultWriteTimeout = 30 * time.Second

// withWriteContext keeps parent's values but not its cancellation, so a run
// interrupted by a signal or its own deadline still records its outcome.
func withWriteContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
