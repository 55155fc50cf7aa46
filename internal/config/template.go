package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultTemplate is the starting-point config written by `ralph2 init`.
// It is intentionally sparse: applyDefaults fills everything this leaves
// blank.
var defaultTemplate = Config{
	Project: ProjectConfig{},
	Run: RunConfig{
		SystemPrefix:  "ralph2",
		MaxIterations: 50,
		SpecPath:      "spec.md",
	},
	Tracker: TrackerConfig{Bin: "trc"},
}

// WriteDefault marshals a starter .ralph2.yaml to path, failing if a file
// already exists there (init must never clobber a project's existing
// configuration).
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}

	raw, err := yaml.Marshal(defaultTemplate)
	if err != nil {
		return fmt.Errorf("config: marshal default template: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
