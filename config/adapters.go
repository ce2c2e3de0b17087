package config

import (
	"context"
	"time"

	taskscope "github.com/aristath/taskscope"
	"github.com/aristath/taskscope/journal"
	"github.com/aristath/taskscope/resilience"
)

// ScopeOptions converts the profile into scope creation options.
func (c *Config) ScopeOptions() ([]taskscope.Option, error) {
	policy, err := taskscope.ParsePolicy(c.Scope.Policy)
	if err != nil {
		return nil, err
	}

	opts := []taskscope.Option{taskscope.WithPolicy(policy)}
	if c.Scope.Limit > 0 {
		opts = append(opts, taskscope.WithLimit(c.Scope.Limit))
	}
	return opts, nil
}

// RetryConfig converts the profile's retry section, keeping the library
// default for every empty field.
func (c *Config) RetryConfig() (resilience.RetryConfig, error) {
	out := resilience.DefaultRetryConfig()

	if err := setDuration(&out.InitialInterval, c.Retry.InitialInterval); err != nil {
		return out, err
	}
	if err := setDuration(&out.MaxInterval, c.Retry.MaxInterval); err != nil {
		return out, err
	}
	if err := setDuration(&out.MaxElapsedTime, c.Retry.MaxElapsedTime); err != nil {
		return out, err
	}
	if c.Retry.Multiplier > 0 {
		out.Multiplier = c.Retry.Multiplier
	}
	return out, nil
}

// BreakerConfig converts the profile's breaker section, keeping the library
// default for every zero field.
func (c *Config) BreakerConfig() (resilience.BreakerConfig, error) {
	out := resilience.DefaultBreakerConfig()

	if c.Breaker.MaxRequests > 0 {
		out.MaxRequests = c.Breaker.MaxRequests
	}
	if err := setDuration(&out.Timeout, c.Breaker.Timeout); err != nil {
		return out, err
	}
	if c.Breaker.ConsecutiveFailures > 0 {
		out.ConsecutiveFailures = c.Breaker.ConsecutiveFailures
	}
	return out, nil
}

// OpenJournal opens the journal store the profile selects: nil when the
// journal is disabled, a file-backed store for a configured path, otherwise
// an in-memory store.
func (c *Config) OpenJournal(ctx context.Context) (*journal.Store, error) {
	if !c.Journal.Enabled {
		return nil, nil
	}
	if c.Journal.Path != "" {
		return journal.NewStore(ctx, c.Journal.Path)
	}
	return journal.NewMemoryStore(ctx)
}

// setDuration parses a duration string into dst, leaving dst untouched for
// the empty string.
func setDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
