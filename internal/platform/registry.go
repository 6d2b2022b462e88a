package platform

import (
	"fmt"
	"sync"
)

// Registry holds all registered platform adapters. It must be created via
// NewRegistry and passed explicitly to components that need it; there is no
// global registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Platform]Adapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: map[Platform]Adapter{},
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}
	p, err := Parse(adapter.Type().String())
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[p]; exists {
		return fmt.Errorf("platform already registered: %s", p)
	}
	r.adapters[p] = adapter
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given platform.
func (r *Registry) Get(p Platform) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[p]
	return adapter, ok
}

// Types returns all registered platforms.
func (r *Registry) Types() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Platform, 0, len(r.adapters))
	for p := range r.adapters {
		items = append(items, p)
	}
	return items
}
