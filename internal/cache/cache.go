// Package cache is the process-local read-through cache over owner-scoped reads.
//
// Entries expire after a fixed TTL and are invalidated synchronously by every mutation.
// Coherence across several processes is bounded by the TTL only.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultTTL is the maximum age of an entry absent invalidation
	DefaultTTL = 15 * time.Minute
	// DefaultSize bounds the number of (owner, kind) entries
	DefaultSize = 10000
)

// ResourceKind is the family of records an entry holds
type ResourceKind string

const (
	KindBills      ResourceKind = "bills"
	KindIncomes    ResourceKind = "incomes"
	KindPayments   ResourceKind = "payments"
	KindSettings   ResourceKind = "settings"
	KindTemplates  ResourceKind = "templates"
	KindCategories ResourceKind = "categories"
)

// Key addresses one owner's cached resource
type Key struct {
	OwnerID int32
	Kind    ResourceKind
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.OwnerID, k.Kind)
}

// Stats are cumulative counters since construction
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	Entries       int    `json:"entries"`
}

// Cache is safe for concurrent use
type Cache struct {
	entries *expirable.LRU[Key, any]

	// mu orders Set against Invalidate. A load that started before an invalidation
	// carries an older generation and is dropped instead of stored. Generations are
	// tracked only for keys with a load in flight, so the map is bounded by the
	// number of concurrent loads.
	mu       sync.Mutex
	inflight map[Key]*loadState

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

type loadState struct {
	gen     uint64
	pending int
}

// New creates a cache holding at most size entries for ttl each
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  expirable.NewLRU[Key, any](size, nil, ttl),
		inflight: make(map[Key]*loadState),
	}
}

// Get returns the cached value for key
func (c *Cache) Get(key Key) (any, bool) {
	value, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// Set stores value unconditionally
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, value)
}

// BeginLoad registers a load of key and returns its generation. Every BeginLoad must
// be paired with EndLoad.
func (c *Cache) BeginLoad(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.inflight[key]
	if !ok {
		st = &loadState{}
		c.inflight[key] = st
	}
	st.pending++
	return st.gen
}

// EndLoad releases a load registered by BeginLoad
func (c *Cache) EndLoad(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.inflight[key]
	if !ok {
		return
	}
	st.pending--
	if st.pending <= 0 {
		delete(c.inflight, key)
	}
}

// SetIfGeneration stores value only if key has not been invalidated since BeginLoad
// returned gen
func (c *Cache) SetIfGeneration(key Key, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.inflight[key]
	if !ok || st.gen != gen {
		return false
	}
	c.entries.Add(key, value)
	return true
}

// Invalidate drops keys and bumps the generation of loads in flight for them.
// It is a no-op on a nil cache.
func (c *Cache) Invalidate(keys ...Key) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if st, ok := c.inflight[key]; ok {
			st.gen++
		}
		c.entries.Remove(key)
		c.invalidations.Add(1)
	}
}

// InvalidateOwner drops the given kinds for one owner
func (c *Cache) InvalidateOwner(ownerID int32, kinds ...ResourceKind) {
	keys := make([]Key, len(kinds))
	for i, kind := range kinds {
		keys[i] = Key{OwnerID: ownerID, Kind: kind}
	}
	c.Invalidate(keys...)
}

// Purge empties the cache and invalidates every load in flight
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.inflight {
		st.gen++
	}
	c.entries.Purge()
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       c.entries.Len(),
	}
}

// ReadThrough returns the cached value for key, loading and storing it on a miss.
// A nil cache always loads.
func ReadThrough[T any](c *Cache, key Key, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}

	if cached, ok := c.Get(key); ok {
		if value, ok := cached.(T); ok {
			return value, nil
		}
	}

	gen := c.BeginLoad(key)
	defer c.EndLoad(key)
	value, err := load()
	if err != nil {
		return value, err
	}
	c.SetIfGeneration(key, value, gen)
	return value, nil
}
