package endpoint

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a validated endpoint stays trusted without
// re-discovery. Staleness tolerance is operational policy; override it
// via config rather than editing this constant.
const DefaultTTL = 600 * time.Second

// Validator re-checks that an endpoint is still live: its process still
// matches the target signature and its socket file still exists.
type Validator func(ctx context.Context, ep Endpoint) bool

// Cache holds the last validated endpoint for the lifetime of the
// process. It is an explicit handle passed to discovery and dispatch, not
// a package-level singleton, so tests can run isolated instances in
// parallel.
//
// The mutex is held only while reading or writing the entry, never across
// the validation call, so a slow validation cannot block unrelated cache
// access.
type Cache struct {
	mu    sync.Mutex
	entry *Endpoint

	ttl      time.Duration
	validate Validator
}

// NewCache creates a cache with the given TTL and validator. A TTL of 0
// uses DefaultTTL. A nil validator accepts everything (useful only in
// tests).
func NewCache(ttl time.Duration, validate Validator) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, validate: validate}
}

// Get returns the cached endpoint if one is present, younger than the
// TTL, and still passing re-validation. Any failed check clears the
// cache and reports a miss.
func (c *Cache) Get(ctx context.Context) (Endpoint, bool) {
	c.mu.Lock()
	entry := c.entry
	c.mu.Unlock()

	if entry == nil {
		return Endpoint{}, false
	}
	if time.Since(entry.ValidatedAt) > c.ttl {
		c.drop(entry)
		return Endpoint{}, false
	}
	if c.validate != nil && !c.validate(ctx, *entry) {
		c.drop(entry)
		return Endpoint{}, false
	}
	return *entry, true
}

// drop clears the entry only if it is still the one this Get observed.
// An endpoint Set concurrently while the validator was running must
// survive the failed check of the older entry.
func (c *Cache) drop(entry *Endpoint) {
	c.mu.Lock()
	if c.entry == entry {
		c.entry = nil
	}
	c.mu.Unlock()
}

// Set stores an endpoint unconditionally, stamped with the current time.
func (c *Cache) Set(ep Endpoint) {
	ep.ValidatedAt = time.Now()
	c.mu.Lock()
	c.entry = &ep
	c.mu.Unlock()
}

// Invalidate unconditionally clears the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}
