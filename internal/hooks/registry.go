package hooks

import (
	"fmt"

	"github.com/upsguard/upsguard/internal/hooks/backends"
)

// Registry is an explicit map of backend ID to Factory. Backends are
// compiled in and registered here; there is no runtime plugin discovery.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds a registry preloaded with the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("ssh", func(config map[string]string) (Hook, error) { return backends.NewSSHHook(config) })
	r.Register("http", func(config map[string]string) (Hook, error) { return backends.NewHTTPHook(config) })
	r.Register("custom_script", func(config map[string]string) (Hook, error) { return backends.NewScriptHook(config) })
	r.Register("mock", func(config map[string]string) (Hook, error) { return backends.NewMockHook(config) })
	return r
}

// Register adds or replaces a backend factory under backendID.
func (r *Registry) Register(backendID string, factory Factory) {
	r.factories[backendID] = factory
}

// Create instantiates a Hook for the given backend, validating its config
// at construction per the factory's own contract.
func (r *Registry) Create(backendID string, config map[string]string) (Hook, error) {
	factory, ok := r.factories[backendID]
	if !ok {
		return nil, fmt.Errorf("unknown hook backend: %s", backendID)
	}
	return factory(config)
}

// Backends lists every registered backend ID.
func (r *Registry) Backends() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}
