package guide

import (
	"sync"

	"github.com/stwalsh4118/livetv/internal/models"
)

// Data maps channel ids to their guide intervals in delivery order
type Data map[int64][]models.Program

// Cache holds the most recent non-empty guide data. Contents are only ever
// replaced wholesale, so a snapshot is never half updated.
type Cache struct {
	mu      sync.RWMutex
	data    Data
	applied uint64
	issued  uint64
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{data: Data{}}
}

// Snapshot returns the current mapping. Callers must not modify it.
func (c *Cache) Snapshot() Data {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Programs returns the cached intervals for one channel
func (c *Cache) Programs(channelID int64) []models.Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[channelID]
}

// Len returns the number of channels with guide data
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Generation returns the fetch generation of the current contents; 0 means
// nothing has been applied yet
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applied
}

// begin issues a generation for a fetch that is starting
func (c *Cache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// latest reports whether gen is the most recently issued generation
func (c *Cache) latest(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return gen == c.issued
}

// replace swaps in data if gen is still the latest issued generation
func (c *Cache) replace(gen uint64, data Data) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.issued {
		return false
	}
	c.data = data
	c.applied = gen
	return true
}
