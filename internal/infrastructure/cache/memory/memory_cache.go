package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache is the in-process ObjectCache used when Redis is not
// configured. Entries are serialized the same way as in Redis so both
// backends behave identically.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]item
	ttl       time.Duration
	lastSweep time.Time
}

// sweepThreshold forces a sweep on large maps regardless of timing.
const sweepThreshold = 512

type item struct {
	data      []byte
	expiresAt time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		entries:   make(map[string]item),
		ttl:       ttl,
		lastSweep: time.Now(),
	}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	it, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("cache miss: key not found")
	}
	if time.Now().After(it.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return fmt.Errorf("cache miss: key expired")
	}

	if err := json.Unmarshal(it.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep keeps the map from accumulating expired
	// entries between lookups. Nothing can expire sooner than one TTL
	// after the previous sweep, so that is the sweep cadence; big maps
	// sweep regardless.
	now := time.Now()
	if len(c.entries) >= sweepThreshold || (len(c.entries) > 0 && now.Sub(c.lastSweep) >= c.ttl) {
		for k, it := range c.entries {
			if now.After(it.expiresAt) {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}

	c.entries[key] = item{data: data, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]item)
	return nil
}

// Len reports the live entry count. Test helper.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
