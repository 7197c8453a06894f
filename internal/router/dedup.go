package router

import (
	"sync"
	"time"
)

// dedupMaxKeys caps memory when a flood of distinct message ids arrives.
const dedupMaxKeys = 50000

type dedupEntry struct {
	at       time.Time
	inFlight bool
}

// Dedup is the process-local front of the idempotency gate. It closes the
// window in which two deliveries of the same message reach this process
// before either is recorded in the processed log.
type Dedup struct {
	mu      sync.Mutex
	entries map[string]dedupEntry
	ttl     time.Duration
	now     func() time.Time
	lastGC  time.Time
}

// NewDedup creates a Dedup remembering finished ids for ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		entries: make(map[string]dedupEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Claim reserves key for processing. It returns false if the key is being
// processed right now or finished within the TTL.
func (d *Dedup) Claim(key string) bool {
	if d == nil || key == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.gcLocked(now)

	if e, ok := d.entries[key]; ok {
		if e.inFlight || now.Sub(e.at) < d.ttl {
			return false
		}
	}
	d.entries[key] = dedupEntry{at: now, inFlight: true}
	return true
}

// Done marks a claimed key as finished; repeats are refused until the TTL passes.
func (d *Dedup) Done(key string) {
	if d == nil || key == "" {
		return
	}
	d.mu.Lock()
	d.entries[key] = dedupEntry{at: d.now()}
	d.mu.Unlock()
}

// Release drops a claim so a redelivery can be processed again.
func (d *Dedup) Release(key string) {
	if d == nil || key == "" {
		return
	}
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
}

func (d *Dedup) gcLocked(now time.Time) {
	if now.Sub(d.lastGC) < d.ttl && len(d.entries) < dedupMaxKeys {
		return
	}
	d.lastGC = now
	for k, e := range d.entries {
		if !e.inFlight && now.Sub(e.at) >= d.ttl {
			delete(d.entries, k)
		}
	}
	// Hard eviction if still at cap (map iteration order)
	for k, e := range d.entries {
		if len(d.entries) < dedupMaxKeys {
			break
		}
		if !e.inFlight {
			delete(d.entries, k)
		}
	}
}
