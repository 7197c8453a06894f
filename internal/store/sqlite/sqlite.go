// Package sqlite is the single-node storage backend on modernc.org/sqlite.
// The schema is created on open; timestamps are stored as Unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
	"github.com/nextlevelbuilder/hrdesk/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS employees (
    sender_id  TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    role       TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    active     INTEGER NOT NULL DEFAULT 1,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
    tenant_id  TEXT NOT NULL,
    sender_id  TEXT NOT NULL,
    state      TEXT NOT NULL,
    version    INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (tenant_id, sender_id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions (updated_at);
CREATE TABLE IF NOT EXISTS processed_messages (
    tenant_id    TEXT NOT NULL,
    sender_id    TEXT NOT NULL,
    message_id   TEXT NOT NULL,
    processed_at INTEGER NOT NULL,
    PRIMARY KEY (tenant_id, sender_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_messages (processed_at);
CREATE TABLE IF NOT EXISTS query_log (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    sender_id  TEXT NOT NULL,
    query      TEXT NOT NULL,
    answer     TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
`

// Store implements every store contract on one SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; CAS on version still guards concurrent turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Stores wraps s in a store.Stores container.
func (s *Store) Stores() *store.Stores {
	return &store.Stores{
		Sessions:  s,
		Processed: s,
		Queries:   s,
		Pruner:    s,
		Employees: s,
		Close:     s.db.Close,
	}
}

func (s *Store) Close() error { return s.db.Close() }

func millis(t time.Time) int64 { return t.UnixMilli() }

func (s *Store) Load(ctx context.Context, key session.Key) (*session.State, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM sessions WHERE tenant_id = ? AND sender_id = ?`,
		key.TenantID, key.SenderID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return &session.State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	st := &session.State{Version: version}
	if err := json.Unmarshal([]byte(doc), st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return st, nil
}

func (s *Store) Save(ctx context.Context, key session.Key, st *session.State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	now := millis(s.now())

	var res sql.Result
	if st.Version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (tenant_id, sender_id, state, version, updated_at)
			 VALUES (?, ?, ?, 1, ?) ON CONFLICT (tenant_id, sender_id) DO NOTHING`,
			key.TenantID, key.SenderID, string(doc), now,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET state = ?, version = version + 1, updated_at = ?
			 WHERE tenant_id = ? AND sender_id = ? AND version = ?`,
			string(doc), now, key.TenantID, key.SenderID, st.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	if n == 0 {
		return session.ErrConflict
	}
	st.Version++
	return nil
}

func (s *Store) IsProcessed(ctx context.Context, key session.Key, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_messages WHERE tenant_id = ? AND sender_id = ? AND message_id = ?`,
		key.TenantID, key.SenderID, messageID,
	).Scan(&n)
	return n > 0, err
}

func (s *Store) MarkProcessed(ctx context.Context, key session.Key, messageID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_messages (tenant_id, sender_id, message_id, processed_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		key.TenantID, key.SenderID, messageID, millis(at),
	)
	return err
}

func (s *Store) PruneProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE processed_at < ?`, millis(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) PruneSessions(ctx context.Context, idleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, millis(idleBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) LogQuery(ctx context.Context, rec session.QueryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (id, tenant_id, sender_id, query, answer, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.Must(uuid.NewV7()).String(), rec.Key.TenantID, rec.Key.SenderID, rec.Query, rec.Answer, millis(rec.At),
	)
	return err
}

func (s *Store) Resolve(ctx context.Context, senderID string) (identity.Identity, error) {
	id := identity.Identity{SenderID: senderID}
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, role, name, email FROM employees WHERE sender_id = ? AND active = 1`,
		senderID,
	).Scan(&id.TenantID, &id.Role, &id.DisplayName, &id.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve employee: %w", err)
	}
	return id, nil
}

func (s *Store) SyncEmployees(ctx context.Context, ids []identity.Identity) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	now := millis(s.now())
	keep := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO employees (sender_id, tenant_id, role, name, email, active, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)
			 ON CONFLICT (sender_id) DO UPDATE SET
			   tenant_id = excluded.tenant_id, role = excluded.role, name = excluded.name,
			   email = excluded.email, active = 1, updated_at = excluded.updated_at`,
			id.SenderID, id.TenantID, id.Role, id.DisplayName, id.Email, now,
		); err != nil {
			return 0, 0, fmt.Errorf("upsert employee %s: %w", id.SenderID, err)
		}
		keep = append(keep, id.SenderID)
	}

	q := `UPDATE employees SET active = 0, updated_at = ? WHERE active = 1`
	args := []any{now}
	if len(keep) > 0 {
		q += ` AND sender_id NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
		args = append(args, keep...)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("deactivate employees: %w", err)
	}
	deactivated, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return int64(len(ids)), deactivated, nil
}
