// Package identity resolves WhatsApp senders to employees.
package identity

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound means the sender is not a known employee.
var ErrNotFound = errors.New("identity: sender not found")

// Identity is the employee behind a sender id.
type Identity struct {
	SenderID    string `yaml:"sender_id" json:"sender_id"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	Role        string `yaml:"role" json:"role"`
	DisplayName string `yaml:"name" json:"name"`
	Email       string `yaml:"email,omitempty" json:"email,omitempty"`
}

// Directory looks up employees by sender id.
type Directory interface {
	Resolve(ctx context.Context, senderID string) (Identity, error)
}

// Static is an in-memory Directory.
type Static struct {
	mu   sync.RWMutex
	byID map[string]Identity
}

// NewStatic builds a Static directory from the given identities.
func NewStatic(ids ...Identity) *Static {
	s := &Static{byID: make(map[string]Identity, len(ids))}
	s.Replace(ids)
	return s
}

func (s *Static) Resolve(_ context.Context, senderID string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byID[senderID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

// Replace swaps the full set of identities atomically.
func (s *Static) Replace(ids []Identity) {
	m := make(map[string]Identity, len(ids))
	for _, id := range ids {
		m[id.SenderID] = id
	}
	s.mu.Lock()
	s.byID = m
	s.mu.Unlock()
}

// Len returns the number of known senders.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// SenderIDs returns the known sender ids in no particular order.
func (s *Static) SenderIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, id)
	}
	return out
}

// All returns every identity, sorted by sender id.
func (s *Static) All() []Identity {
	s.mu.RLock()
	out := make([]Identity, 0, len(s.byID))
	for _, id := range s.byID {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}
