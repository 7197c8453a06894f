// Package memstore is an in-memory backend used in tests and for the
// "memory" database driver. Nothing survives a restart.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
	"github.com/nextlevelbuilder/hrdesk/internal/store"
)

type sessionRow struct {
	doc       []byte
	version   int64
	updatedAt time.Time
}

// Store implements every store contract in memory. Session documents are
// kept serialized so reads and writes go through the same JSON encoding
// as the SQL backends.
type Store struct {
	mu        sync.Mutex
	sessions  map[session.Key]sessionRow
	processed map[string]time.Time
	queries   []session.QueryRecord
	employees *identity.Static
	now       func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions:  make(map[session.Key]sessionRow),
		processed: make(map[string]time.Time),
		employees: identity.NewStatic(),
		now:       time.Now,
	}
}

// Stores wraps s in a store.Stores container.
func (s *Store) Stores() *store.Stores {
	return &store.Stores{
		Sessions:  s,
		Processed: s,
		Queries:   s,
		Pruner:    s,
		Employees: s,
		Close:     func() error { return nil },
	}
}

// SetClock overrides the clock used for session update times.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Load(_ context.Context, key session.Key) (*session.State, error) {
	s.mu.Lock()
	row, ok := s.sessions[key]
	s.mu.Unlock()

	if !ok {
		return &session.State{}, nil
	}
	st := &session.State{Version: row.version}
	if err := json.Unmarshal(row.doc, st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return st, nil
}

func (s *Store) Save(_ context.Context, key session.Key, st *session.State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[key]
	switch {
	case !ok && st.Version != 0, ok && row.version != st.Version:
		return session.ErrConflict
	}
	s.sessions[key] = sessionRow{doc: doc, version: st.Version + 1, updatedAt: s.now()}
	st.Version++
	return nil
}

// Raw returns the stored session document, for tests and debugging.
func (s *Store) Raw(key session.Key) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[key]
	return row.doc, ok
}

func processedKey(key session.Key, messageID string) string {
	return key.String() + "\x00" + messageID
}

func (s *Store) IsProcessed(_ context.Context, key session.Key, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[processedKey(key, messageID)]
	return ok, nil
}

func (s *Store) MarkProcessed(_ context.Context, key session.Key, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := processedKey(key, messageID)
	if _, ok := s.processed[k]; !ok {
		s.processed[k] = at
	}
	return nil
}

func (s *Store) PruneProcessed(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, at := range s.processed {
		if at.Before(before) {
			delete(s.processed, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) PruneSessions(_ context.Context, idleBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, row := range s.sessions {
		if row.updatedAt.Before(idleBefore) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) LogQuery(_ context.Context, rec session.QueryRecord) error {
	s.mu.Lock()
	s.queries = append(s.queries, rec)
	s.mu.Unlock()
	return nil
}

// Queries returns a copy of the logged queries.
func (s *Store) Queries() []session.QueryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.QueryRecord, len(s.queries))
	copy(out, s.queries)
	return out
}

func (s *Store) Resolve(ctx context.Context, senderID string) (identity.Identity, error) {
	return s.employees.Resolve(ctx, senderID)
}

// SyncEmployees replaces the roster. Deactivated employees are dropped.
func (s *Store) SyncEmployees(_ context.Context, ids []identity.Identity) (int64, int64, error) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id.SenderID] = true
	}
	var gone int64
	for _, sid := range s.employees.SenderIDs() {
		if !keep[sid] {
			gone++
		}
	}
	s.employees.Replace(ids)
	return int64(len(ids)), gone, nil
}
