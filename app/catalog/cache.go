package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Cache wraps a catalog client and keeps the last good snapshot, so a catalog
// read failure degrades to the previous source list instead of an empty cycle.
type Cache struct {
	client Client
	mu     sync.RWMutex
	last   *Snapshot
}

func NewCache(client Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Refresh(ctx context.Context) error {
	snapshot, err := c.client.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	c.mu.Lock()
	c.last = snapshot
	c.mu.Unlock()

	return nil
}

// Current returns the last good snapshot, or nil when no load ever succeeded.
func (c *Cache) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Cache) SourceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return 0
	}
	return len(c.last.Sources)
}
