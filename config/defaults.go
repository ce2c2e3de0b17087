package config

// Defaults returns the built-in profile: propagating scopes with no limit,
// the library's retry and breaker tuning spelled out, journal disabled.
func Defaults() *Config {
	return &Config{
		Scope: ScopeConfig{
			Policy: "propagating",
		},
		Retry: RetryConfig{
			InitialInterval: "100ms",
			MaxInterval:     "10s",
			MaxElapsedTime:  "2m",
			Multiplier:      2.0,
		},
		Breaker: BreakerConfig{
			MaxRequests:         3,
			Timeout:             "30s",
			ConsecutiveFailures: 5,
		},
		Journal: JournalConfig{
			Enabled: false,
		},
	}
}
