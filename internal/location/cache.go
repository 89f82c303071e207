package location

import (
	"math"
	"sync"
)

// DefaultEpsilon is the coordinate difference, in degrees, under which two
// positions are treated as the same place.
const DefaultEpsilon = 0.001

// Cache is a single-slot cache of the last location context, keyed by its
// coordinates. Lookups within Epsilon degrees on both axes are hits.
type Cache struct {
	mu      sync.RWMutex
	epsilon float64
	entry   Context
	valid   bool
}

// NewCache creates an empty cache. A non-positive epsilon uses DefaultEpsilon.
func NewCache(epsilon float64) *Cache {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Cache{
		epsilon: epsilon,
		entry:   DefaultContext(),
	}
}

// Get returns the cached context when it is valid and its coordinates are
// within epsilon of lat/lon.
func (c *Cache) Get(lat, lon float64) (Context, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return c.entry, false
	}
	if math.Abs(c.entry.Lat-lat) > c.epsilon || math.Abs(c.entry.Lon-lon) > c.epsilon {
		return c.entry, false
	}
	return c.entry, true
}

// Current returns the cached context regardless of its key.
func (c *Cache) Current() Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// Put overwrites the slot. When fresh is false the values are kept but the
// validity of the slot is unchanged.
func (c *Cache) Put(ctx Context, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = ctx
	if fresh {
		c.valid = true
	}
}

// Invalidate forces the next Get to miss. Cached values are retained so a
// failed refresh can still fall back to them.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
