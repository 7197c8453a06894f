package docs

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type listing struct {
	objs    []Object
	expires time.Time
}

// Cache memoizes List results for a TTL. Concurrent misses for the same
// prefix share one backend call. Other methods pass through.
type Cache struct {
	Store

	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]listing
}

// NewCache wraps s. A ttl of zero disables caching.
func NewCache(s Store, ttl time.Duration) *Cache {
	return &Cache{
		Store:   s,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]listing),
	}
}

func (c *Cache) List(ctx context.Context, prefix string) ([]Object, error) {
	if c.ttl <= 0 {
		return c.Store.List(ctx, prefix)
	}

	c.mu.Lock()
	if e, ok := c.entries[prefix]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.objs, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do(prefix, func() (any, error) {
		objs, err := c.Store.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[prefix] = listing{objs: objs, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return objs, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("docs: shared listing fill", "prefix", prefix)
	}
	return v.([]Object), nil
}

// Invalidate drops cached listings whose prefix starts with prefix.
// An empty prefix clears everything.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.entries {
		if strings.HasPrefix(p, prefix) {
			delete(c.entries, p)
		}
	}
}
