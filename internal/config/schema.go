// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for replyloop.
package config

import (
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Jobs lists the scheduled jobs to register at startup. Jobs are
	// descriptors, not code: each references a named handler contributed
	// by the automation packages (e.g. "youtube.check_comments").
	Jobs []JobConfig `yaml:"jobs,omitempty"`
}

// JobConfig describes one scheduled job.
type JobConfig struct {
	// Name uniquely identifies the job within the scheduler.
	Name string `yaml:"name"`

	// Schedule is a 5-field cron expression (minute hour dom month dow).
	Schedule string `yaml:"schedule"`

	// Enabled defaults to true. A disabled job stays visible in the
	// registry but is never given a clock entry.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Handler is the registered handler name this job invokes.
	Handler string `yaml:"handler"`

	// Overlap selects what happens when a tick fires while the previous
	// run is still in flight: "skip" (default) drops the tick, "queue"
	// waits for the running invocation to finish.
	Overlap string `yaml:"overlap,omitempty"`

	// Settings is opaque configuration passed to the handler on each run.
	Settings map[string]any `yaml:"settings,omitempty"`
}

// IsEnabled reports whether the job should receive clock ticks.
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// ModuleIDs returns the configured module IDs sorted for a deterministic
// load order.
func (c *Config) ModuleIDs() []string {
	ids := make([]string, 0, len(c.Modules))
	for id := range c.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Overlap policy values accepted in JobConfig.Overlap.
const (
	OverlapSkip  = "skip"
	OverlapQueue = "queue"
)
