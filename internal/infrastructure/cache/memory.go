package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/findoc/findoc/internal/domain/services"
)

// MemoryCache is a process-local CacheService used when no Redis URL is
// configured (development, tests). It honors expirations lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	hashes  map[string]map[string]string
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemory() services.CacheService {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		hashes:  make(map[string]map[string]string),
	}
}

func (c *MemoryCache) get(key string) (string, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: fmt.Sprint(value)}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.get(key)
	if !ok {
		return "", fmt.Errorf("cache key not found: %s", key)
	}
	return value, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	delete(c.hashes, key)
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.get(key)
	return ok, nil
}

func (c *MemoryCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.get(key); ok {
		return false, nil
	}

	entry := memoryEntry{value: fmt.Sprint(value)}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}
	c.entries[key] = entry
	return true, nil
}

func (c *MemoryCache) Increment(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if value, ok := c.get(key); ok {
		fmt.Sscanf(value, "%d", &current)
	}
	current++
	c.entries[key] = memoryEntry{value: fmt.Sprint(current)}
	return current, nil
}

func (c *MemoryCache) HSet(ctx context.Context, key string, field string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, ok := c.hashes[key]
	if !ok {
		hash = make(map[string]string)
		c.hashes[key] = hash
	}
	hash[field] = fmt.Sprint(value)
	return nil
}

func (c *MemoryCache) HGet(ctx context.Context, key string, field string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hash, ok := c.hashes[key]; ok {
		if value, ok := hash[field]; ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("cache field not found: %s.%s", key, field)
}

func (c *MemoryCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]string)
	for field, value := range c.hashes[key] {
		result[field] = value
	}
	return result, nil
}

func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

func (c *MemoryCache) Close() error { return nil }
