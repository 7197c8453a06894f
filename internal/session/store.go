// Package session holds the per-sender conversation state and the storage
// contracts the router depends on.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by Store.Save when the stored version moved on
// since the state was loaded.
var ErrConflict = errors.New("session: version conflict")

// Store persists conversation state.
type Store interface {
	// Load returns the stored state, or an empty State with Version 0
	// when the sender has none. Absence is not an error.
	Load(ctx context.Context, key Key) (*State, error)
	// Save writes st if the stored version still equals st.Version and
	// advances st.Version on success. Otherwise it returns ErrConflict.
	Save(ctx context.Context, key Key, st *State) error
}

// ProcessedLog records message ids that have been fully dispatched.
type ProcessedLog interface {
	IsProcessed(ctx context.Context, key Key, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, key Key, messageID string, at time.Time) error
}

// Pruner removes old records. Retention is operator policy; the router
// never prunes on its own.
type Pruner interface {
	PruneProcessed(ctx context.Context, before time.Time) (int64, error)
	PruneSessions(ctx context.Context, idleBefore time.Time) (int64, error)
}

// QueryRecord is one answered question, kept for HR reporting.
type QueryRecord struct {
	Key    Key
	Query  string
	Answer string
	At     time.Time
}

// QueryLog stores answered questions and forwarded HR queries.
type QueryLog interface {
	LogQuery(ctx context.Context, rec QueryRecord) error
}
