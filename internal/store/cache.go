// Package store holds the in-memory state shared by the refresh loop, the
// distribution layer and the control API: the price cache, indicator
// history, alert history and watchlist bindings.
//
// Every store guards its map with one RWMutex and copies entries in and out,
// so readers never observe a half-written entry and callers can't alias
// stored values.
package store

import (
	"sync"

	"marketpulse/internal/model"
)

// PriceCache maps symbol to its latest CacheEntry.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]model.CacheEntry
}

var _ model.SnapshotSource = (*PriceCache)(nil)

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]model.CacheEntry, 256)}
}

// Put replaces the entry for e.Symbol wholesale.
func (c *PriceCache) Put(e model.CacheEntry) {
	e = e.Clone()
	c.mu.Lock()
	c.entries[e.Symbol] = e
	c.mu.Unlock()
}

// Get returns the entry for symbol.
func (c *PriceCache) Get(symbol string) (model.CacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return model.CacheEntry{}, false
	}
	return e.Clone(), true
}

// Snapshot returns a copy of every entry.
func (c *PriceCache) Snapshot() map[string]model.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]model.CacheEntry, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.Clone()
	}
	return out
}

// Len returns the number of cached symbols.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
