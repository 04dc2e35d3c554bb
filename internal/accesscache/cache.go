// Package accesscache implements the validation-result cache described
// in spec.md §4.9: an in-process, size-bounded LRU keyed by a fingerprint
// of the raw token string, with a periodic eviction sweep for expired
// entries. A MaxSize of 0 disables the cache entirely rather than
// treating 0 as "unbounded" or panicking.
//
// Grounded on the teacher's internal/cache.Cache (connection construction
// and TTL/eviction idioms) generalized from "Redis-backed response cache"
// to "in-process LRU plus an optional Redis mirror tier", reusing
// go-redis/v9 the same way the teacher does for the mirror.
package accesscache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tokenforge/jwtguard/internal/logging"
)

// Fingerprint derives the cache key for a raw token string. blake2b is
// used purely as a fast, collision-resistant fingerprint, not for any
// security property of the cache itself — the cached value never
// outlives the issuer's own signature/expiry guarantees.
func Fingerprint(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return string(sum[:])
}

type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Cache is an in-process, fixed-capacity LRU of validated token content,
// keyed by Fingerprint(raw). Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	ll       *list.List
	index    map[string]*list.Element
	skew     time.Duration
	disabled bool

	mirror *RedisMirror
}

// New builds a Cache. maxSize <= 0 disables the cache: Get always misses,
// Put is a no-op. clockSkew defaults to 60s when <= 0, matching
// spec.md's validation clock-skew tolerance so a token isn't evicted
// before claim validation would have rejected it anyway.
func New(maxSize int, clockSkew time.Duration, mirror *RedisMirror) *Cache {
	if clockSkew <= 0 {
		clockSkew = 60 * time.Second
	}
	return &Cache{
		maxSize:  maxSize,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
		skew:     clockSkew,
		disabled: maxSize <= 0,
		mirror:   mirror,
	}
}

// Get returns the cached value for fingerprint, promoting it to
// most-recently-used on hit. A stale (expired) entry counts as a miss and
// is evicted immediately.
//
// Get never consults the RedisMirror: the mirror stores a JSON-decoded
// snapshot, not the live typed value this process cached, so a mirror
// hit can't be handed back as the same Go type a caller asked for. The
// mirror is write-through only (see Put): other instances can observe
// these writes, but this process never reads them back and never skips
// validation work because of them.
func (c *Cache) Get(fingerprint string) (interface{}, bool) {
	if c.disabled {
		return nil, false
	}
	c.mu.Lock()
	el, ok := c.index[fingerprint]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		c.mu.Unlock()
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.mu.Unlock()
	return e.value, true
}

// Put inserts or refreshes fingerprint's cached value, expiring at exp.
// When the cache is at capacity, the least-recently-used entry is
// evicted to make room.
func (c *Cache) Put(fingerprint string, value interface{}, exp time.Time) {
	if c.disabled {
		return
	}
	c.mu.Lock()
	if el, ok := c.index[fingerprint]; ok {
		el.Value.(*entry).value = value
		el.Value.(*entry).expiresAt = exp
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	el := c.ll.PushFront(&entry{key: fingerprint, value: value, expiresAt: exp})
	c.index[fingerprint] = el
	for c.ll.Len() > c.maxSize {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
	}
	c.mu.Unlock()

	if c.mirror != nil {
		c.mirror.Put(context.Background(), fingerprint, value, exp)
	}
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.index, el.Value.(*entry).key)
}

// Sweep removes every entry expired by more than clockSkew. The Validator
// runs it from a robfig/cron job every 5 minutes (the same pattern
// internal/jwkset uses for JWKS refresh).
func (c *Cache) Sweep() int {
	if c.disabled {
		return 0
	}
	cutoff := time.Now().Add(-c.skew)
	removed := 0
	c.mu.Lock()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if e.expiresAt.Before(cutoff) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	c.mu.Unlock()
	if removed > 0 {
		logging.Cache().Debug().Int("removed", removed).Msg("access token cache sweep")
	}
	return removed
}

// Len reports the current entry count, mainly for diagnostics/tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
