package flightwatch

import (
	"context"
	"sync"
	"time"

	"flightbot/internal/storage"
)

// DedupCache remembers which (subscriber, event) pairs have already been
// notified. Entries carry an expiry so the cache stays bounded: once a
// flight's time is safely in the past the key can never become due again and
// is dropped on the next prune.
//
// The cache is in-memory; an optional store makes entries survive restarts.
type DedupCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> keep until

	maxEntries int
	store      storage.Store
}

func NewDedupCache(maxEntries int, store storage.Store) *DedupCache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &DedupCache{
		entries:    map[string]time.Time{},
		maxEntries: maxEntries,
		store:      store,
	}
}

// Seen reports whether the key was already recorded and is still live.
func (c *DedupCache) Seen(ctx context.Context, key string, now time.Time) bool {
	c.mu.Lock()
	until, ok := c.entries[key]
	c.mu.Unlock()
	if ok && now.Before(until) {
		return true
	}

	// Persistent check (best-effort) for cross-restart dedup.
	if c.store != nil {
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		until, ok, err := c.store.GetDedup(cctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			c.mu.Lock()
			c.entries[key] = until
			c.mu.Unlock()
			return true
		}
	}
	return false
}

// Record marks the key as notified until the given expiry. Called whether or
// not the send succeeded: delivery here is at-most-once.
func (c *DedupCache) Record(ctx context.Context, key string, until, now time.Time) {
	c.mu.Lock()
	c.entries[key] = until

	// Prune expired, then cap by evicting earliest-expiry entries.
	for k, u := range c.entries {
		if !now.Before(u) {
			delete(c.entries, k)
		}
	}
	for len(c.entries) > c.maxEntries {
		var (
			minKey string
			minT   time.Time
			set    bool
		)
		for k, t := range c.entries {
			if !set || t.Before(minT) {
				minKey, minT, set = k, t, true
			}
		}
		if minKey == "" {
			break
		}
		delete(c.entries, minKey)
	}
	c.mu.Unlock()

	if c.store != nil {
		cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		_ = c.store.PutDedup(cctx, key, until)
		cancel()
	}
}

// Len reports the live entry count (for logs/metrics).
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
