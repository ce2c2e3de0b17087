// Package resilience layers failure handling around task work: exponential
// backoff retry, per-name circuit breakers, and an Erlang-style restart
// supervisor. Every wrapper honours the core's cancellation contract: a
// cancelled task is never retried, never counted against a breaker, and
// never restarted.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	taskscope "github.com/aristath/taskscope"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// withDefaults fills unset fields from DefaultRetryConfig. A zero
// RandomizationFactor is kept: it means no jitter, not "unset".
func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = d.MaxElapsedTime
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.RandomizationFactor < 0 {
		c.RandomizationFactor = d.RandomizationFactor
	}
	return c
}

// Retry wraps work with exponential backoff: transient failures run again
// until MaxElapsedTime is spent. Cancellation stops retrying immediately so
// a task being torn down keeps its cancellation outcome, and an open
// circuit breaker is not hammered. A deadline blown inside the body is an
// ordinary failure and is retried.
func Retry(work taskscope.Work, cfg RetryConfig) taskscope.Work {
	cfg = cfg.withDefaults()

	return func(ctx context.Context) error {
		operation := func() error {
			// Check context first - fail fast if cancelled
			if ctx.Err() != nil {
				return backoff.Permanent(context.Cause(ctx))
			}

			err := work(ctx)
			if err == nil {
				return nil
			}

			// Cancellation is an outcome, not a transient fault
			if taskscope.IsCancelled(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			return err
		}

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = cfg.InitialInterval
		policy.MaxInterval = cfg.MaxInterval
		policy.MaxElapsedTime = cfg.MaxElapsedTime
		policy.Multiplier = cfg.Multiplier
		policy.RandomizationFactor = cfg.RandomizationFactor

		return backoff.Retry(operation, backoff.WithContext(policy, ctx))
	}
}
