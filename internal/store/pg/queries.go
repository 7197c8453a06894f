package pg

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// PGQueryLog stores answered questions.
type PGQueryLog struct {
	db *sql.DB
}

func NewPGQueryLog(db *sql.DB) *PGQueryLog {
	return &PGQueryLog{db: db}
}

func (l *PGQueryLog) LogQuery(ctx context.Context, rec session.QueryRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO query_log (id, tenant_id, sender_id, query, answer, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.Must(uuid.NewV7()), rec.Key.TenantID, rec.Key.SenderID, rec.Query, rec.Answer, rec.At,
	)
	return err
}
