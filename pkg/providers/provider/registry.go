package provider

import (
	"fmt"
	"sync"

	"github.com/germanamz/chaichat/pkg/providers/family"
)

// Factory builds an Adapter for a handle.
type Factory func(h family.Handle) (Adapter, error)

// Registry maps provider families to adapter factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[family.Family]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[family.Family]Factory)}
}

// Register installs the factory for f, replacing any previous one.
func (r *Registry) Register(f family.Family, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[f] = fn
}

// Resolve builds the adapter matching h.Family.
func (r *Registry) Resolve(h family.Handle) (Adapter, error) {
	r.mu.RLock()
	fn, ok := r.factories[h.Family]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider: no adapter registered for family %q", h.Family)
	}

	a, err := fn(h)
	if err != nil {
		return nil, fmt.Errorf("provider: build %s adapter: %w", h.Family, err)
	}

	return a, nil
}
