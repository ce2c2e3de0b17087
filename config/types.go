// Package config loads optional host profiles: supervision policy, limits,
// retry and breaker tuning, and journal settings as JSON on disk. The core
// never requires a profile; adapters turn a loaded Config into the options
// the other packages take.
package config

// ScopeConfig tunes how scopes are created.
type ScopeConfig struct {
	Policy string `json:"policy"`          // "propagating" or "isolating"
	Limit  int64  `json:"limit,omitempty"` // max concurrently running tasks; 0 = unbounded
}

// RetryConfig tunes the retry wrapper. Durations are Go duration strings
// (e.g. "100ms", "2m"); empty fields keep the library defaults.
type RetryConfig struct {
	InitialInterval string  `json:"initial_interval,omitempty"` // first backoff delay
	MaxInterval     string  `json:"max_interval,omitempty"`     // backoff ceiling
	MaxElapsedTime  string  `json:"max_elapsed_time,omitempty"` // total retry budget
	Multiplier      float64 `json:"multiplier,omitempty"`       // backoff growth factor
}

// BreakerConfig tunes the per-name circuit breakers. Zero fields keep the
// library defaults.
type BreakerConfig struct {
	MaxRequests         uint32 `json:"max_requests,omitempty"`         // probes allowed half-open
	Timeout             string `json:"timeout,omitempty"`              // open -> half-open delay
	ConsecutiveFailures uint32 `json:"consecutive_failures,omitempty"` // trip threshold
}

// JournalConfig selects the lifecycle journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // database file; empty selects the in-memory store
}

// Config is the top-level host profile.
type Config struct {
	Scope   ScopeConfig   `json:"scope"`
	Retry   RetryConfig   `json:"retry"`
	Breaker BreakerConfig `json:"breaker"`
	Journal JournalConfig `json:"journal"`
}
