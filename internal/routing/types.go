// Package routing resolves which agent adapter and model a given
// cognitive-cycle role (planner, executor, verifier, specialist) should
// use, generalized from the teacher's per-phase adapter/model routing
// (internal/routing) to ralph2's four agent kinds (spec §4.8, kernel.AgentKind).
package routing

import "strings"

// ModelConfig specifies an adapter and model for an agent kind.
type ModelConfig struct {
	Adapter string `json:"adapter" yaml:"adapter" mapstructure:"adapter"`
	Model   string `json:"model" yaml:"model" mapstructure:"model"`
}

// KindRouting maps agent kinds ("planner", "executor", "verifier",
// "specialist") to adapter+model configurations.
type KindRouting struct {
	Default   ModelConfig            `json:"default" yaml:"default" mapstructure:"default"`
	Overrides map[string]ModelConfig `json:"overrides,omitempty" yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// ParseModelSpec parses an "adapter:model" colon-separated string into a
// ModelConfig. If no colon is present, the whole string is treated as the
// model with an empty adapter (use default).
func ParseModelSpec(spec string) ModelConfig {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) == 2 {
		return ModelConfig{Adapter: parts[0], Model: parts[1]}
	}
	return ModelConfig{Model: spec}
}
