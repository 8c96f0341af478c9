// Package cache implements CLIP's response cache (component C, spec.md
// §4.C): a map keyed by (qualified_tool, canonical_args_hash) with
// single-flight builder dedup and lazy TTL eviction.
//
// DESIGN: grounded on the teacher's tool_output pipe
// (internal/pipes/tool_output/tool_output.go), which also caches an
// expensive per-call transformation keyed by a content hash before
// computing it, dual-TTL style. CLIP collapses the teacher's
// original/compressed dual-TTL split into a single TTL per entry (spec.md
// §4.C has one TTL per ShapedResponse) and replaces the teacher's
// hand-rolled dedup with golang.org/x/sync/singleflight, which gives the
// same "first caller computes, concurrent callers wait" discipline spec.md
// asks for without a bespoke inflight-placeholder type.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Builder computes the value for a cache miss.
type Builder func(ctx context.Context) (any, error)

type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Cache is CLIP's response cache. Zero value is not usable; use New.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
}

// GetOrCompute returns the cached value for key if present and unexpired.
// Otherwise it runs build exactly once even under concurrent callers for
// the same key (single-flight), stores the result with ttl, and returns
// it. hit reports whether the value came from the cache.
//
// Per spec.md §4.C, a builder failure is never cached: the next call, even
// immediately after, retries build from scratch.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, build Builder) (value any, hit bool, err error) {
	if v, ok := c.read(key); ok {
		return v, true, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the singleflight key: another goroutine may have
		// populated the entry while we were waiting to enter Do.
		if v, ok := c.read(key); ok {
			return v, nil
		}
		v, err := build(ctx)
		if err != nil {
			return nil, err
		}
		c.write(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

func (c *Cache) read(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *Cache) write(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{value: value, insertedAt: time.Now(), ttl: ttl}
	c.mu.Unlock()
}

// Invalidate removes key unconditionally.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of live (possibly stale) entries, for diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper runs a periodic background sweep that evicts expired
// entries, bounding memory even for keys nobody reads again (spec.md §4.C:
// "optional periodic sweep"). It runs until ctx is canceled or Stop is
// called.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	log.Debug().Int("remaining", len(c.entries)).Msg("cache sweep complete")
}

// Stop halts the sweeper goroutine, if running.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
