package providers

import (
	"sort"
	"sync"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// Registry is the boot-time set of providers Pierre can connect users
// to. It is populated once at startup and read-only afterward; the
// mutex guards against tests constructing registries concurrently, not
// runtime mutation.
type Registry struct {
	mu        sync.RWMutex
	providers map[kernel.ProviderID]Provider
}

// NewRegistry builds a registry from a fixed provider set.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[kernel.ProviderID]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Descriptor().ID] = p
	}
	return r
}

// ListSupported returns every registered provider's id, sorted for
// deterministic output (e.g. in the connect-providers UI).
func (r *Registry) ListSupported() []kernel.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]kernel.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) IsSupported(id kernel.ProviderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[id]
	return ok
}

// Get returns the provider for id, or ErrUnsupported.
func (r *Registry) Get(id kernel.ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, providerErrors.New(ErrUnsupported).WithDetail("provider_id", id.String())
	}
	return p, nil
}
