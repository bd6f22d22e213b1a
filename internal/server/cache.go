package server

import (
	"sync"
	"time"

	"github.com/mj1618/hidbridge/internal/model"
)

// cacheEntry holds a cached device list with its timestamp.
type cacheEntry struct {
	devices   []model.Device
	timestamp time.Time
}

// DeviceCache provides a TTL-based cache of device summaries keyed by the
// matching criteria that produced them.
type DeviceCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewDeviceCache creates a new cache. A ttl of 0 disables caching.
func NewDeviceCache(ttl time.Duration) *DeviceCache {
	return &DeviceCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Devices returns cached devices if within TTL, otherwise calls load.
func (c *DeviceCache) Devices(key string, load func() ([]model.Device, error)) ([]model.Device, error) {
	if c.ttl == 0 {
		return load()
	}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && time.Since(entry.timestamp) < c.ttl {
		devices := entry.devices
		c.mu.Unlock()
		return devices, nil
	}
	c.mu.Unlock()

	devices, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{devices: devices, timestamp: time.Now()}
	c.mu.Unlock()

	return devices, nil
}

// InvalidateAll clears the entire cache. It runs on every device arrival
// and removal.
func (c *DeviceCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
