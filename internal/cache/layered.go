package cache

import "time"

// LayeredCache checks memory first and falls back to disk
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory-over-disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) (*Entry, bool) {
	if entry, found := c.memory.Get(key); found {
		return entry, true
	}

	if entry, found := c.disk.Get(key); found {
		// Promote with the memory default TTL
		_ = c.memory.Set(key, entry, 0)
		return entry, true
	}

	return nil, false
}

func (c *LayeredCache) Set(key string, entry *Entry, ttl time.Duration) error {
	if err := c.memory.Set(key, entry, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, entry, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
