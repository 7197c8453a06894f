package pg

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/nextlevelbuilder/hrdesk/internal/store/pg/migrations"
)

// RequiredSchemaVersion is the migration version this binary expects.
const RequiredSchemaVersion uint = 1

var (
	ErrSchemaOutdated = errors.New("database schema is outdated")
	ErrSchemaDirty    = errors.New("database schema is dirty (failed migration)")
	ErrSchemaAhead    = errors.New("database schema is newer than this binary")
)

// SchemaStatus is the result of a schema compatibility check.
type SchemaStatus struct {
	CurrentVersion  uint
	RequiredVersion uint
	Dirty           bool
	Compatible      bool
	NeedsMigration  bool
}

// Err maps the status to one of the schema errors, or nil when compatible.
func (s *SchemaStatus) Err() error {
	switch {
	case s.Compatible:
		return nil
	case s.Dirty:
		return ErrSchemaDirty
	case s.CurrentVersion > s.RequiredVersion:
		return ErrSchemaAhead
	default:
		return ErrSchemaOutdated
	}
}

// CheckSchema reads schema_migrations and compares it with RequiredSchemaVersion.
func CheckSchema(db *sql.DB) (*SchemaStatus, error) {
	s := &SchemaStatus{RequiredVersion: RequiredSchemaVersion}

	err := db.QueryRow("SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&s.CurrentVersion, &s.Dirty)
	if err != nil {
		// No row or no table yet: a fresh database.
		s.NeedsMigration = true
		return s, nil
	}
	if s.Dirty {
		return s, nil
	}
	switch {
	case s.CurrentVersion == RequiredSchemaVersion:
		s.Compatible = true
	case s.CurrentVersion < RequiredSchemaVersion:
		s.NeedsMigration = true
	}
	return s, nil
}

// FormatError returns operator instructions for an incompatible schema.
func FormatError(s *SchemaStatus) string {
	if s.Dirty {
		return fmt.Sprintf(
			"Database schema is in a dirty state (version %d).\n"+
				"A migration failed partway.\n\n"+
				"  Fix:  hrdesk migrate force %d\n"+
				"  Then: hrdesk migrate up\n",
			s.CurrentVersion, s.CurrentVersion-1,
		)
	}
	if s.CurrentVersion > s.RequiredVersion {
		return fmt.Sprintf(
			"Database schema (v%d) is newer than this binary (requires v%d).\n"+
				"  Fix: deploy a newer hrdesk binary.\n",
			s.CurrentVersion, s.RequiredVersion,
		)
	}
	return fmt.Sprintf(
		"Database schema is outdated: current v%d, required v%d.\n\n"+
			"  Run: hrdesk migrate up\n",
		s.CurrentVersion, s.RequiredVersion,
	)
}

// NewMigrator returns a migrator over the embedded migrations.
func NewMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
