package pg

import (
	"fmt"

	"github.com/nextlevelbuilder/hrdesk/internal/store"
)

// NewPGStores creates all stores backed by Postgres. The schema must
// already be migrated; see Migrate and CheckSchema.
func NewPGStores(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	status, err := CheckSchema(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !status.Compatible {
		db.Close()
		return nil, fmt.Errorf("%w\n%s", status.Err(), FormatError(status))
	}

	sessions := NewPGSessionStore(db)
	return &store.Stores{
		Sessions:  sessions,
		Processed: sessions,
		Queries:   NewPGQueryLog(db),
		Pruner:    sessions,
		Employees: NewPGEmployeeStore(db),
		Close:     db.Close,
	}, nil
}
