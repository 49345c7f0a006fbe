// Package metrics provides periodic snapshots of the daemon's rule state.
package metrics

import (
	"errors"
	"time"
)

// DefaultCollectInterval is the default interval between snapshot cycles.
const DefaultCollectInterval = 30 * time.Second

// Config holds the configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	// Default: true (set by ApplyDefaults).
	Enabled bool `yaml:"enabled"`

	// CollectInterval is the interval between snapshot cycles.
	// Must be at least 5s.
	CollectInterval time.Duration `yaml:"collect_interval"`
}

// ApplyDefaults sets default values for zero-valued fields.
// On a zero-valued Config, Enabled defaults to true.
func (c *Config) ApplyDefaults() {
	// Enabled defaults to true for zero-valued Config. Since bool zero is false,
	// we use a heuristic: if all fields are zero, the caller wants defaults
	// (including Enabled=true). If any field is non-zero, the caller constructed
	// the config explicitly and we respect Enabled as-is.
	if c.CollectInterval == 0 {
		c.Enabled = true
		c.CollectInterval = DefaultCollectInterval
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CollectInterval < 5*time.Second {
		return errors.New("metrics: config: collect_interval must be at least 5s")
	}
	return nil
}
