package agent

import (
	"fmt"
	"sync"
)

var (
	registry     = make(map[string]func() Agent)
	registryLock sync.RWMutex
)

// Register adds an agent factory under name (e.g. "planner", "executor").
func Register(name string, factory func() Agent) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[name] = factory
}

// Get constructs an Agent from its registered factory.
func Get(name string) (Agent, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("agent: unknown kind %q", name)
	}
	return factory(), nil
}

// List returns all registered agent kind names.
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
