package source

import (
	"sync"

	"github.com/samber/lo"
)

// Registry holds every loaded source and fetcher. Sources are assembled once
// at startup; the enabled flag is the only mutable property afterwards.
type Registry struct {
	mu       sync.RWMutex
	sources  []Source
	fetchers []Fetcher
	enabled  map[string]bool
}

// NewRegistry builds a registry over a static set of sources and fetchers.
// Only ids listed in enabledIDs start enabled.
func NewRegistry(sources []Source, fetchers []Fetcher, enabledIDs []string) *Registry {
	enabled := make(map[string]bool, len(sources))
	for _, s := range sources {
		enabled[s.ID()] = lo.Contains(enabledIDs, s.ID())
	}
	return &Registry{
		sources:  sources,
		fetchers: fetchers,
		enabled:  enabled,
	}
}

// Sources returns every registered source, enabled or not.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// EnabledSources returns the sources currently enabled.
func (r *Registry) EnabledSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(r.sources, func(s Source, _ int) bool {
		return r.enabled[s.ID()]
	})
}

// Enabled reports whether the source with the given id is enabled.
func (r *Registry) Enabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[id]
}

// SetEnabled flips the enabled flag for a source id. Unknown ids are ignored.
func (r *Registry) SetEnabled(id string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enabled[id]; ok {
		r.enabled[id] = on
	}
}

// Fetchers returns every registered fetcher.
func (r *Registry) Fetchers() []Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fetcher, len(r.fetchers))
	copy(out, r.fetchers)
	return out
}

// FetcherFor resolves the fetcher handling the given source id. The first
// registered match wins. The second return is false when none handles it.
func (r *Registry) FetcherFor(sourceID string) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.fetchers {
		if lo.Contains(f.HandledIDs(), sourceID) {
			return f, true
		}
	}
	return nil, false
}
