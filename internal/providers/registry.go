package providers

import (
	"fmt"
	"sync"

	"studio/internal/domain"
)

// Registry resolves the provider that serves each job kind.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.JobKind]domain.Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.JobKind]domain.Provider)}
}

// Register binds a provider to a kind, replacing any previous binding.
func (r *Registry) Register(kind domain.JobKind, p domain.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[kind] = p
}

// For returns the provider for kind.
func (r *Registry) For(kind domain.JobKind) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind %q", kind)
	}
	return p, nil
}

// Kinds lists the registered kinds in declaration order.
func (r *Registry) Kinds() []domain.JobKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.JobKind
	for _, k := range domain.JobKinds {
		if _, ok := r.providers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
