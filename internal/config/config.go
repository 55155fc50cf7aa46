// Package config loads a project's .ralph2.yaml settings (iteration
// ceiling, system prefix, tracker binary, per-agent-kind adapter/model
// routing, retry tuning), generalized from the teacher's internal/config
// (viper + mapstructure, a Config struct with an applyDefaults/Validate
// pair) to ralph2's much narrower domain: there is no cloud provisioner,
// no GitHub App, no OAuth credential handling here — the kernel drives a
// local git worktree and invokes agents in-process, not over a
// provisioned VM.
package config

import (
	"fmt"
	"time"

	"github.com/ralph2/kernel/internal/kernel"
	"github.com/ralph2/kernel/internal/routing"
	"github.com/spf13/viper"
)

// ProjectConfig contains project-level identification, kept from the
// teacher verbatim — still meaningful for a local kernel run.
type ProjectConfig struct {
	Name       string `mapstructure:"name" yaml:"name,omitempty"`
	Repository string `mapstructure:"repository" yaml:"repository,omitempty"`
}

// RunConfig contains per-run defaults applied when the CLI doesn't
// override them with a flag.
type RunConfig struct {
	MaxIterations int    `mapstructure:"max_iterations" yaml:"max_iterations"`
	SystemPrefix  string `mapstructure:"system_prefix" yaml:"system_prefix"`
	SpecPath      string `mapstructure:"spec_path" yaml:"spec_path"`
}

// TrackerConfig locates the trc work-item tracker this project uses.
type TrackerConfig struct {
	Bin string `mapstructure:"bin" yaml:"bin"`                   // default: "trc"
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"` // default: repo root
}

// RetryConfig tunes C7's backoff, generalized from the teacher's
// hardcoded detectBlockingIssues loop constants into user-configurable
// fields with the same defaults.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts,omitempty"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay,omitempty"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay,omitempty"`
}

// AgentBinaryConfig names the adapter a registered agent.Agent kind uses
// and, for adapters that shell out to a CLI coding agent, where its
// binary lives. The adapter implementations themselves are outside this
// kernel's scope (spec §1); this only carries the configuration an
// adapter would need once registered.
type AgentBinaryConfig struct {
	Adapter string `mapstructure:"adapter" yaml:"adapter"` // e.g. "claude-code", "codex"
	Bin     string `mapstructure:"bin" yaml:"bin"`
}

// Config is the full ralph2 project configuration, loaded from
// .ralph2.yaml and environment variables prefixed RALPH2_.
type Config struct {
	Project ProjectConfig                `mapstructure:"project" yaml:"project,omitempty"`
	Run     RunConfig                    `mapstructure:"run" yaml:"run"`
	Tracker TrackerConfig                `mapstructure:"tracker" yaml:"tracker"`
	Retry   RetryConfig                  `mapstructure:"retry" yaml:"retry,omitempty"`
	Routing routing.KindRouting          `mapstructure:"routing" yaml:"routing,omitempty"`
	Agents  map[string]AgentBinaryConfig `mapstructure:"agents" yaml:"agents,omitempty"`
}

// Load reads .ralph2.yaml (already located by cli's initConfig via viper)
// and environment overrides, then applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills in unset fields with the kernel's documented
// defaults (internal/kernel/const.go), mirroring the teacher's
// applyDefaults shape.
func applyDefaults(cfg *Config) {
	if cfg.Run.SystemPrefix == "" {
		cfg.Run.SystemPrefix = kernel.DefaultSystemPrefix
	}
	if cfg.Run.MaxIterations == 0 {
		cfg.Run.MaxIterations = kernel.DefaultMaxIterations
	}
	if cfg.Tracker.Bin == "" {
		cfg.Tracker.Bin = "trc"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = kernel.DefaultRetryMaxAttempts
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 16 * time.Second
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Run.MaxIterations < 0 {
		return fmt.Errorf("run.max_iterations must not be negative")
	}
	if c.Tracker.Bin == "" {
		return fmt.Errorf("tracker.bin is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

// ValidateForRun performs the additional check required before starting a
// run: a spec must be resolvable from either the config file or the
// --spec flag (the caller merges the flag in before calling this).
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Run.SpecPath == "" {
		return fmt.Errorf("a spec path is required (set run.spec_path or pass --spec)")
	}
	return nil
}
