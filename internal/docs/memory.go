package docs

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemStore is an in-memory Store. Presigned links point at BaseURL.
type MemStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
	lists   atomic.Int64
}

// NewMemStore creates a MemStore holding the given key/content pairs.
func NewMemStore(objects map[string][]byte) *MemStore {
	m := &MemStore{BaseURL: "https://docs.invalid/", objects: make(map[string][]byte)}
	for k, v := range objects {
		m.objects[k] = v
	}
	return m
}

// Put adds or replaces an object.
func (m *MemStore) Put(key string, body []byte) {
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
}

// ListCalls counts List invocations.
func (m *MemStore) ListCalls() int64 { return m.lists.Load() }

func (m *MemStore) List(_ context.Context, prefix string) ([]Object, error) {
	m.lists.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemStore) PresignGet(_ context.Context, key, filename string, ttl time.Duration) (string, error) {
	q := url.Values{"filename": {filename}, "ttl": {ttl.String()}}
	return m.BaseURL + key + "?" + q.Encode(), nil
}
