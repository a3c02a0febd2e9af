package geocode

import (
	"strings"
	"sync"

	"github.com/hmoscout/ingest-cli/internal/normalize"
)

// Cache memoizes resolved coordinates for the lifetime of the process.
// Coordinates are near-static, so there is no eviction; the cache is lost
// on restart and re-derived. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Point
}

// Point is a cached coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// NewCache creates an empty geocode cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Point)}
}

// Get returns the cached point for key, if any.
func (c *Cache) Get(key string) (Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return p, ok
}

// Put stores a point under key, overwriting any previous entry.
func (c *Cache) Put(key string, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = p
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// addressKey builds the cache key for a full address lookup.
func addressKey(addr AddressInput) string {
	return normalize.Address(addr.Address) + "|" + strings.ToLower(normalize.Postcode(addr.Postcode))
}

// postcodeKey builds the cache key for a postcode-centroid lookup.
func postcodeKey(postcode string) string {
	return "pc|" + strings.ToLower(normalize.Postcode(postcode))
}
