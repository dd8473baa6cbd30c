package frond

import "sync"

// renderCache memoizes compiled render programs. Entries are keyed by
// resolved template identity and stamped with the source-store generation
// they were compiled from; any store mutation makes every stamped entry a
// miss, which is the conservative wholesale invalidation the engine wants
// (an ancestor edit changes what a name resolves to).
type renderCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	compiled   *Compiled
	generation uint64
}

func newRenderCache() *renderCache {
	return &renderCache{entries: make(map[string]cacheEntry)}
}

// get returns the compiled program for key if it was built from the given
// store generation.
func (c *renderCache) get(key string, generation uint64) (*Compiled, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || entry.generation != generation {
		return nil, false
	}
	return entry.compiled, true
}

// put stores a compiled program under key for the given generation.
func (c *renderCache) put(key string, generation uint64, compiled *Compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{compiled: compiled, generation: generation}
}

// clear evicts every compiled program.
func (c *renderCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// size returns the number of cached programs.
func (c *renderCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
