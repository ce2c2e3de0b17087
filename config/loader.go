package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	taskscope "github.com/aristath/taskscope"
)

// Load reads and merges a profile from global and project paths.
// Order of precedence (highest to lowest): project file, global file,
// defaults. Missing files are not errors; malformed JSON or invalid values
// return an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := Defaults()

	if globalPath != "" {
		if err := mergeFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the profile from conventional paths.
// Global: ~/.taskscope/config.json
// Project: .taskscope/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".taskscope", "config.json")
	projectPath := filepath.Join(".taskscope", "config.json")

	return Load(globalPath, projectPath)
}

// mergeFile unmarshals a JSON file over the accumulated profile. Keys
// present in the file overwrite; absent keys keep their current values, so
// a file may override a single field. Missing files are silently skipped.
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate checks the profile's values: the policy must parse and every
// duration string must be a valid Go duration. A validated Config's adapter
// methods cannot fail.
func (c *Config) Validate() error {
	if _, err := taskscope.ParsePolicy(c.Scope.Policy); err != nil {
		return err
	}
	if c.Scope.Limit < 0 {
		return fmt.Errorf("config: scope limit must not be negative, got %d", c.Scope.Limit)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"retry.initial_interval", c.Retry.InitialInterval},
		{"retry.max_interval", c.Retry.MaxInterval},
		{"retry.max_elapsed_time", c.Retry.MaxElapsedTime},
		{"breaker.timeout", c.Breaker.Timeout},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := time.ParseDuration(f.value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", f.name, err)
		}
	}
	if c.Retry.Multiplier < 0 {
		return fmt.Errorf("config: retry multiplier must not be negative, got %v", c.Retry.Multiplier)
	}
	return nil
}
