package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ralph2/kernel/internal/routing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				Tracker: TrackerConfig{Bin: "trc"},
				Retry:   RetryConfig{MaxAttempts: 3},
			},
			wantErr: false,
		},
		{
			name: "missing tracker bin",
			config: Config{
				Tracker: TrackerConfig{Bin: ""},
				Retry:   RetryConfig{MaxAttempts: 3},
			},
			wantErr: true,
			errMsg:  "tracker.bin is required",
		},
		{
			name: "negative max iterations",
			config: Config{
				Run:     RunConfig{MaxIterations: -1},
				Tracker: TrackerConfig{Bin: "trc"},
				Retry:   RetryConfig{MaxAttempts: 3},
			},
			wantErr: true,
			errMsg:  "run.max_iterations must not be negative",
		},
		{
			name: "zero retry attempts",
			config: Config{
				Tracker: TrackerConfig{Bin: "trc"},
				Retry:   RetryConfig{MaxAttempts: 0},
			},
			wantErr: true,
			errMsg:  "retry.max_attempts must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate() expected error containing %q, got nil", tt.errMsg)
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ValidateForRun(t *testing.T) {
	base := Config{
		Tracker: TrackerConfig{Bin: "trc"},
		Retry:   RetryConfig{MaxAttempts: 3},
	}

	t.Run("missing spec path", func(t *testing.T) {
		cfg := base
		if err := cfg.ValidateForRun(); err == nil {
			t.Fatal("expected error for missing spec path")
		}
	})

	t.Run("valid run config", func(t *testing.T) {
		cfg := base
		cfg.Run.SpecPath = "spec.md"
		if err := cfg.ValidateForRun(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("base Validate failures propagate", func(t *testing.T) {
		cfg := Config{Tracker: TrackerConfig{Bin: ""}, Run: RunConfig{SpecPath: "spec.md"}}
		if err := cfg.ValidateForRun(); err == nil {
			t.Fatal("expected error to propagate from Validate")
		}
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Run.SystemPrefix != "ralph2" {
		t.Errorf("expected default system prefix ralph2, got %q", cfg.Run.SystemPrefix)
	}
	if cfg.Run.MaxIterations != 50 {
		t.Errorf("expected default max iterations 50, got %d", cfg.Run.MaxIterations)
	}
	if cfg.Tracker.Bin != "trc" {
		t.Errorf("expected default tracker bin trc, got %q", cfg.Tracker.Bin)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected default retry max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("expected default base delay 1s, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxDelay != 16*time.Second {
		t.Errorf("expected default max delay 16s, got %v", cfg.Retry.MaxDelay)
	}
}

func TestApplyDefaults_DoesNotOverrideSetValues(t *testing.T) {
	cfg := &Config{
		Run: RunConfig{SystemPrefix: "custom", MaxIterations: 10},
		Tracker: TrackerConfig{Bin: "my-trc"},
		Retry:   RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	}
	applyDefaults(cfg)

	if cfg.Run.SystemPrefix != "custom" || cfg.Run.MaxIterations != 10 {
		t.Errorf("defaults overrode explicit run config: %+v", cfg.Run)
	}
	if cfg.Tracker.Bin != "my-trc" {
		t.Errorf("defaults overrode explicit tracker bin: %q", cfg.Tracker.Bin)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("defaults overrode explicit retry config: %+v", cfg.Retry)
	}
}

func TestConfig_RoutingWiring(t *testing.T) {
	cfg := &Config{
		Routing: routing.KindRouting{
			Default: routing.ModelConfig{Adapter: "claude-code", Model: "opus"},
			Overrides: map[string]routing.ModelConfig{
				"verifier": {Adapter: "codex", Model: "o3"},
			},
		},
	}

	r := routing.NewRouter(&cfg.Routing)
	if cfg := r.ModelForKind("executor"); cfg.Adapter != "claude-code" {
		t.Errorf("expected default adapter for executor, got %+v", cfg)
	}
	if cfg := r.ModelForKind("verifier"); cfg.Adapter != "codex" {
		t.Errorf("expected override adapter for verifier, got %+v", cfg)
	}
}
