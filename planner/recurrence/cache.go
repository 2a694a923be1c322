package recurrence

import (
	"fmt"
	"sync"
	"time"
)

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Entries kept before the least recently used is dropped; 0 is unbounded
	CleanupInterval time.Duration // How often to sweep expired entries; 0 disables the sweeper
	// Clock returns the current time for expiry bookkeeping. Nil means time.Now.
	Clock func() time.Time
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// CacheStats provides information about cache performance
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           int
	Misses         int
}

// Cache memoises values that are pure functions of their key. A hit never
// changes an answer; it only saves recomputing it.
type Cache[K comparable, V any] struct {
	mu           sync.Mutex
	entries      map[K]*cacheEntry[V]
	config       CacheConfig
	now          func() time.Time
	stop         chan struct{}
	closeOnce    sync.Once
	hits, misses int
}

type cacheEntry[V any] struct {
	value      V
	expiresAt  time.Time
	accessedAt time.Time
}

// NewCache creates a cache and, when config asks for it, its sweeper.
func NewCache[K comparable, V any](config CacheConfig) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]*cacheEntry[V]),
		config:  config,
		now:     config.Clock,
		stop:    make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if config.CleanupInterval > 0 {
		go c.sweepLoop()
	}
	return c
}

// Get returns the live value stored under key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if ok && now.After(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	e.accessedAt = now
	c.hits++
	return e.value, true
}

// Set stores value under key, dropping the least recently used entry when
// the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &cacheEntry[V]{value: value, expiresAt: now.Add(c.config.TTL), accessedAt: now}
	if limit := c.config.MaxEntries; limit > 0 && len(c.entries) > limit {
		c.sweep(now)
		for len(c.entries) > limit {
			c.evictOldest()
		}
	}
}

// Memo returns the cached value for key, computing and storing it on a miss.
// compute runs without the lock held.
func (c *Cache[K, V]) Memo(key K, compute func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := compute()
	c.Set(key, v)
	return v
}

// sweep drops expired entries. Callers hold the lock.
func (c *Cache[K, V]) sweep(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache[K, V]) evictOldest() {
	var (
		oldest K
		at     time.Time
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.accessedAt.Before(at) {
			oldest, at, found = k, e.accessedAt, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}

func (c *Cache[K, V]) sweepLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.sweep(c.now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Close stops the sweeper and clears the cache. It is safe to call more than once.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	c.entries = make(map[K]*cacheEntry[V])
	c.mu.Unlock()
}

// Stats returns cache statistics
func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			expired++
		}
	}
	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
		Hits:           c.hits,
		Misses:         c.misses,
	}
}

// patternKey identifies a pattern measured from an anchor.
type patternKey struct {
	anchor  Date
	pattern string
}

func keyOf(anchor Date, p Pattern) patternKey {
	spec := SpecOf(p)
	fp := fmt.Sprintf("%s/%d/%v/%v/%v/%v", spec.Kind, spec.Interval,
		spec.DaysOfWeek, spec.DaysOfMonth, spec.MonthsOfYear, spec.BySetPos)
	if spec.Until != nil {
		fp += "/until=" + spec.Until.String()
	}
	if spec.Count != nil {
		fp += fmt.Sprintf("/count=%d", *spec.Count)
	}
	return patternKey{anchor: anchor, pattern: fp}
}
