package matchcache

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries Snapshot
}

// NewMemory creates an empty MemoryCache.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(Snapshot)}
}

func (c *MemoryCache) Get(_ context.Context, source, company string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[source][company]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, source, company, matched string) error {
	if !validKey(source, company) {
		return eris.New("matchcache: source and company are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Put(source, company, matched)
	return nil
}

func (c *MemoryCache) All(_ context.Context) (Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(Snapshot, len(c.entries))
	for _, e := range c.entries.Entries() {
		out.Put(e.Source, e.Company, e.Matched)
	}
	return out, nil
}

func (c *MemoryCache) Close() error { return nil }
