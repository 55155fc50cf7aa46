package routing

import (
	"sort"
	"testing"
)

func TestNilRouter(t *testing.T) {
	r := NewRouter(nil)

	if r.IsConfigured() {
		t.Error("nil router should not be configured")
	}

	cfg := r.ModelForKind("executor")
	if cfg.Adapter != "" || cfg.Model != "" {
		t.Errorf("nil router ModelForKind should return empty, got %+v", cfg)
	}

	if adapters := r.Adapters(); adapters != nil {
		t.Errorf("nil router Adapters should return nil, got %v", adapters)
	}
}

func TestDefaultOnly(t *testing.T) {
	r := NewRouter(&KindRouting{
		Default: ModelConfig{Adapter: "claude-code", Model: "opus"},
	})

	if !r.IsConfigured() {
		t.Error("router with default should be configured")
	}

	for _, kind := range []string{"planner", "executor", "verifier", "specialist"} {
		cfg := r.ModelForKind(kind)
		if cfg.Adapter != "claude-code" || cfg.Model != "opus" {
			t.Errorf("kind %s: expected default, got %+v", kind, cfg)
		}
	}
}

func TestOverridesTakePrecedence(t *testing.T) {
	r := NewRouter(&KindRouting{
		Default: ModelConfig{Adapter: "claude-code", Model: "opus"},
		Overrides: map[string]ModelConfig{
			"verifier": {Adapter: "codex", Model: "o3"},
		},
	})

	if cfg := r.ModelForKind("verifier"); cfg.Adapter != "codex" || cfg.Model != "o3" {
		t.Errorf("expected override for verifier, got %+v", cfg)
	}
	if cfg := r.ModelForKind("executor"); cfg.Adapter != "claude-code" || cfg.Model != "opus" {
		t.Errorf("expected default for executor, got %+v", cfg)
	}
}

func TestAdapters(t *testing.T) {
	r := NewRouter(&KindRouting{
		Default: ModelConfig{Adapter: "claude-code", Model: "opus"},
		Overrides: map[string]ModelConfig{
			"verifier":   {Adapter: "codex", Model: "o3"},
			"specialist": {Adapter: "codex", Model: "o3-mini"},
		},
	})

	adapters := r.Adapters()
	sort.Strings(adapters)
	if len(adapters) != 2 || adapters[0] != "claude-code" || adapters[1] != "codex" {
		t.Errorf("expected [claude-code codex], got %v", adapters)
	}
}

func TestParseModelSpec(t *testing.T) {
	tests := []struct {
		spec    string
		adapter string
		model   string
	}{
		{"claude-code:opus", "claude-code", "opus"},
		{"opus", "", "opus"},
		{"codex:o3:extra", "codex", "o3:extra"},
	}
	for _, tc := range tests {
		cfg := ParseModelSpec(tc.spec)
		if cfg.Adapter != tc.adapter || cfg.Model != tc.model {
			t.Errorf("ParseModelSpec(%q) = %+v, want {%q %q}", tc.spec, cfg, tc.adapter, tc.model)
		}
	}
}
