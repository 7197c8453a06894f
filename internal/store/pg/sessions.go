package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// PGSessionStore implements session.Store, session.ProcessedLog and
// session.Pruner backed by Postgres. Writes are compare-and-swap on the
// version column.
type PGSessionStore struct {
	db *sql.DB
}

func NewPGSessionStore(db *sql.DB) *PGSessionStore {
	return &PGSessionStore{db: db}
}

func (s *PGSessionStore) Load(ctx context.Context, key session.Key) (*session.State, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM sessions WHERE tenant_id = $1 AND sender_id = $2`,
		key.TenantID, key.SenderID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return &session.State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}

	st := &session.State{Version: version}
	if err := json.Unmarshal(doc, st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return st, nil
}

func (s *PGSessionStore) Save(ctx context.Context, key session.Key, st *session.State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}

	var res sql.Result
	if st.Version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (tenant_id, sender_id, state, version, updated_at)
			 VALUES ($1, $2, $3, 1, NOW())
			 ON CONFLICT (tenant_id, sender_id) DO NOTHING`,
			key.TenantID, key.SenderID, doc,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET state = $3, version = version + 1, updated_at = NOW()
			 WHERE tenant_id = $1 AND sender_id = $2 AND version = $4`,
			key.TenantID, key.SenderID, doc, st.Version,
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

func (s *PGSessionStore) IsProcessed(ctx context.Context, key session.Key, messageID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_messages
		 WHERE tenant_id = $1 AND sender_id = $2 AND message_id = $3)`,
		key.TenantID, key.SenderID, messageID,
	).Scan(&exists)
	return exists, err
}

func (s *PGSessionStore) MarkProcessed(ctx context.Context, key session.Key, messageID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_messages (tenant_id, sender_id, message_id, processed_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		key.TenantID, key.SenderID, messageID, at,
	)
	return err
}

func (s *PGSessionStore) PruneProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE processed_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGSessionStore) PruneSessions(ctx context.Context, idleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < $1`, idleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
