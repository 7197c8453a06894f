package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
)

// PGEmployeeStore is the employee directory table.
type PGEmployeeStore struct {
	db *sql.DB
}

func NewPGEmployeeStore(db *sql.DB) *PGEmployeeStore {
	return &PGEmployeeStore{db: db}
}

// Resolve returns the active employee registered under senderID.
func (s *PGEmployeeStore) Resolve(ctx context.Context, senderID string) (identity.Identity, error) {
	id := identity.Identity{SenderID: senderID}
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, role, name, email FROM employees WHERE sender_id = $1 AND active`,
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

// SyncEmployees upserts ids and deactivates everyone else in one transaction.
func (s *PGEmployeeStore) SyncEmployees(ctx context.Context, ids []identity.Identity) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	keep := make([]string, 0, len(ids))
	var upserted int64
	for _, id := range ids {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO employees (sender_id, tenant_id, role, name, email, active, updated_at)
			 VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
			 ON CONFLICT (sender_id) DO UPDATE SET
			   tenant_id = EXCLUDED.tenant_id, role = EXCLUDED.role, name = EXCLUDED.name,
			   email = EXCLUDED.email, active = TRUE, updated_at = NOW()`,
			id.SenderID, id.TenantID, id.Role, id.DisplayName, id.Email,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert employee %s: %w", id.SenderID, err)
		}
		keep = append(keep, id.SenderID)
		upserted++
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE employees SET active = FALSE, updated_at = NOW()
		 WHERE active AND NOT (sender_id = ANY($1))`,
		pq.Array(keep),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("deactivate employees: %w", err)
	}
	deactivated, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return upserted, deactivated, nil
}
