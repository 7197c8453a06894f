// Package store groups the persistence backends behind the session and
// identity contracts.
package store

import (
	"context"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// Roster is an employee directory that can be synchronised from an
// external source of truth.
type Roster interface {
	identity.Directory
	// SyncEmployees upserts ids and deactivates every employee not in ids.
	SyncEmployees(ctx context.Context, ids []identity.Identity) (upserted, deactivated int64, err error)
}

// Stores is the top-level container for one storage backend.
type Stores struct {
	Sessions  session.Store
	Processed session.ProcessedLog
	Queries   session.QueryLog
	Pruner    session.Pruner
	Employees Roster

	// Close releases the backend's resources. Never nil.
	Close func() error
}
