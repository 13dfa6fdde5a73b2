package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/tablespectre/internal/metrics"
)

const (
	// DefaultMaxAttempts is the number of times a query is tried before
	// giving up on transient failures.
	DefaultMaxAttempts = 3
	// DefaultBackoffUnit is the delay before the first retry; each further
	// retry doubles it.
	DefaultBackoffUnit = time.Second
)

type retryConfig struct {
	maxAttempts int
	backoffUnit time.Duration
	sleep       func(context.Context, time.Duration) error
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts: DefaultMaxAttempts,
		backoffUnit: DefaultBackoffUnit,
		sleep:       sleepWithContext,
	}
}

func (cfg retryConfig) normalized() retryConfig {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = DefaultMaxAttempts
	}
	if cfg.backoffUnit < 0 {
		cfg.backoffUnit = DefaultBackoffUnit
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepWithContext
	}
	return cfg
}

// backoff returns the wait after the failed attempt with index attempt
// (starting at 0): 2^attempt backoff units.
func (cfg retryConfig) backoff(attempt int) time.Duration {
	return cfg.backoffUnit * time.Duration(1<<uint(attempt))
}

// executeWithRetry runs fn until it succeeds, fails with a non-transient
// error, or maxAttempts transient failures have been seen.
func executeWithRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if err := contextError(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			metrics.QueriesTotal.WithLabelValues("ok").Inc()
			return nil
		}
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}

		if !IsTransient(err) {
			metrics.QueriesTotal.WithLabelValues("fatal").Inc()
			var fatal *FatalBackendError
			if errors.As(err, &fatal) {
				return err
			}
			return &FatalBackendError{Err: err}
		}

		metrics.QueriesTotal.WithLabelValues("transient").Inc()
		lastErr = err
		if attempt == cfg.maxAttempts-1 {
			break
		}

		delay := cfg.backoff(attempt)
		slog.Warn("transient backend error, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", cfg.maxAttempts),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)
		metrics.RetriesTotal.Inc()
		if err := cfg.sleep(ctx, delay); err != nil {
			if ctxErr := contextError(ctx); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}

	var transient *TransientBackendError
	if !errors.As(lastErr, &transient) {
		lastErr = &TransientBackendError{Err: lastErr}
	}
	return &RetriesExhaustedError{Attempts: cfg.maxAttempts, Err: lastErr}
}

func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return contextError(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
