package frond

import "sync"

// SourceStore holds raw template bodies keyed by template name. It is the
// single source of truth consulted by inheritance resolution, partial
// lookup, and the load coordinator. All methods are concurrent-safe.
//
// Every mutation bumps a generation counter. The render cache compares
// generations instead of tracking per-template dependencies, so any source
// change invalidates all compiled templates at once.
type SourceStore struct {
	mu         sync.RWMutex
	sources    map[string]string
	generation uint64
}

// NewSourceStore returns an empty SourceStore.
func NewSourceStore() *SourceStore {
	return &SourceStore{
		sources: make(map[string]string),
	}
}

// Get returns the raw body for a template name. Callers must tolerate a
// miss: the store may be partially populated while a load is in flight.
func (s *SourceStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.sources[name]
	return body, ok
}

// Set stores or overwrites a single template body.
func (s *SourceStore) Set(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = body
	s.generation++
}

// SetAll commits a batch of fetched sources in one generation step. Each
// entry is overwritten whole; a template is never partially written.
func (s *SourceStore) SetAll(sources map[string]string) {
	if len(sources) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, body := range sources {
		s.sources[name] = body
	}
	s.generation++
}

// Names returns the names of all currently stored templates.
func (s *SourceStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	return names
}

// Clear drops every stored template.
func (s *SourceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = make(map[string]string)
	s.generation++
}

// Generation returns the current mutation counter.
func (s *SourceStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
