package payment

import (
	"fmt"
	"sync"

	"github.com/velocart/payments/internal/module/payment/provider"
)

// ProviderRegistry manages the registered payment gateways. Call sites
// address gateways by name only, so orchestration stays gateway-agnostic.
type ProviderRegistry struct {
	mu          sync.RWMutex
	providers   map[string]provider.Provider
	defaultName string
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry(defaultName string) *ProviderRegistry {
	return &ProviderRegistry{
		providers:   make(map[string]provider.Provider),
		defaultName: defaultName,
	}
}

// Register registers a provider under its name.
func (r *ProviderRegistry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name; an empty name selects the default.
func (r *ProviderRegistry) Get(name string) (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
