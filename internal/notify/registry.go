package notify

import (
	"fmt"

	"github.com/upsguard/upsguard/internal/notify/channels"
)

// Registry is the explicit map of plugin ID to Factory for notification
// channel backends, mirroring internal/hooks.Registry.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds a registry preloaded with the built-in channel backends.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("email", func(config map[string]string) (Channel, error) { return channels.NewEmailChannel(config) })
	r.Register("webhook", func(config map[string]string) (Channel, error) { return channels.NewWebhookChannel(config) })
	r.Register("mock", func(config map[string]string) (Channel, error) { return channels.NewMockChannel(config) })
	return r
}

func (r *Registry) Register(pluginID string, factory Factory) {
	r.factories[pluginID] = factory
}

func (r *Registry) Create(pluginID string, config map[string]string) (Channel, error) {
	factory, ok := r.factories[pluginID]
	if !ok {
		return nil, fmt.Errorf("unknown notification channel backend: %s", pluginID)
	}
	return factory(config)
}

func (r *Registry) Backends() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}
