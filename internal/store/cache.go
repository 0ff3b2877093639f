// Package store implements the tiered lead persistence pipeline: primary
// database, durable local fallback and in-memory cache.
package store

import (
	"sync"

	"github.com/veridianlabs/leadvault/internal/core/domain"
)

// LeadCache is the in-process memory tier. It is never the exclusive source
// of truth but guarantees the current process can serve a record until a
// restart. The cache is bounded: when full, the oldest entry by insertion
// order is evicted.
//
// The cache is constructed once at process start and discarded at process
// end; it is not persisted across restarts.
type LeadCache struct {
	mu         sync.RWMutex
	maxEntries int
	items      map[string]domain.Lead
	order      []string // insertion order, oldest first
}

// NewLeadCache creates a cache bounded to maxEntries records.
func NewLeadCache(maxEntries int) *LeadCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &LeadCache{
		maxEntries: maxEntries,
		items:      make(map[string]domain.Lead),
	}
}

// Upsert stores or replaces a lead, evicting the oldest entry when the
// cache is full.
func (c *LeadCache) Upsert(lead domain.Lead) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[lead.ID]; !exists {
		for len(c.items) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
		c.order = append(c.order, lead.ID)
	}
	c.items[lead.ID] = lead
}

// Get returns the cached lead, if present.
func (c *LeadCache) Get(id string) (domain.Lead, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lead, ok := c.items[id]
	return lead, ok
}

// Delete removes a lead and reports whether it was present.
func (c *LeadCache) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns a snapshot of every cached lead.
func (c *LeadCache) All() []domain.Lead {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Lead, 0, len(c.items))
	for _, id := range c.order {
		if lead, ok := c.items[id]; ok {
			out = append(out, lead)
		}
	}
	return out
}

// Len returns the number of cached leads.
func (c *LeadCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
