package channels

import (
	"sync"
	"time"
)

// Defaults for NewKeyedLimiter.
const (
	// DefaultMaxTrackedKeys caps tracked keys so rotating source IPs
	// cannot grow the map without bound.
	DefaultMaxTrackedKeys = 4096
	DefaultWindow         = 60 * time.Second
	DefaultMaxHits        = 30
)

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// KeyedLimiter is a fixed-window counter per key (usually a client IP)
// with a bounded key set. Safe for concurrent use.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	window  time.Duration
	maxHits int
	maxKeys int
	now     func() time.Time
}

// NewKeyedLimiter allows maxHits requests per key per window. Zero
// values take the defaults.
func NewKeyedLimiter(window time.Duration, maxHits int) *KeyedLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxHits <= 0 {
		maxHits = DefaultMaxHits
	}
	return &KeyedLimiter{
		entries: make(map[string]*rateLimitEntry),
		window:  window,
		maxHits: maxHits,
		maxKeys: DefaultMaxTrackedKeys,
		now:     time.Now,
	}
}

// Allow reports whether key is within its limit and counts the request.
func (r *KeyedLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if len(r.entries) >= r.maxKeys {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= r.window {
				delete(r.entries, k)
			}
		}
		// Still full: evict arbitrary keys.
		for len(r.entries) >= r.maxKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok || now.Sub(e.windowStart) >= r.window {
		r.entries[key] = &rateLimitEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.maxHits
}

// Len returns the number of tracked keys.
func (r *KeyedLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
