package cache

import (
	"context"
	"sync"
	"time"

	syncapp "github.com/sellersync/backend/internal/application/sync"
)

// InMemoryItemSKUCache is a process-local ItemSKUCache used when Redis is
// disabled. Entries expire lazily on read.
type InMemoryItemSKUCache struct {
	mu      sync.RWMutex
	entries map[string]skuEntry
	ttl     time.Duration
	now     func() time.Time
}

type skuEntry struct {
	sku       string
	expiresAt time.Time
}

var _ syncapp.ItemSKUCache = (*InMemoryItemSKUCache)(nil)

// NewInMemoryItemSKUCache creates an in-memory cache with the given TTL
func NewInMemoryItemSKUCache(ttl time.Duration) *InMemoryItemSKUCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemoryItemSKUCache{
		entries: make(map[string]skuEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached SKU for an item id
func (c *InMemoryItemSKUCache) Get(_ context.Context, itemID string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[itemID]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, itemID)
		c.mu.Unlock()
		return "", false
	}
	return entry.sku, true
}

// Set stores the SKU for an item id
func (c *InMemoryItemSKUCache) Set(_ context.Context, itemID, sku string) {
	if sku == "" {
		return
	}
	c.mu.Lock()
	c.entries[itemID] = skuEntry{sku: sku, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included
func (c *InMemoryItemSKUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
