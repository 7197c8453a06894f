package pg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DataHookFunc transforms rows after a schema version has been applied.
type DataHookFunc func(ctx context.Context, db *sql.DB) error

type dataHook struct {
	SchemaVersion uint
	Name          string
	Fn            DataHookFunc
}

var hooks = []dataHook{
	{1, "001_canonical_context_labels", canonicalContextLabels},
}

// canonicalContextLabels rewrites the legacy "query" and "sop_query"
// context labels in imported session documents to "awaiting-query".
func canonicalContextLabels(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		UPDATE sessions
		SET state = jsonb_set(state, '{context}', to_jsonb(CASE state->>'context'
			WHEN 'query' THEN 'awaiting-query'
			WHEN 'sop_query' THEN 'awaiting-query'
			WHEN 'hr_query' THEN 'awaiting-hr-query'
			WHEN 'feedback_comment' THEN 'awaiting-feedback-comment'
		END)), version = version + 1
		WHERE state->>'context' IN ('query', 'sop_query', 'hr_query', 'feedback_comment')`)
	return err
}

// PendingHooks returns the names of data hooks that have not run yet.
func PendingHooks(ctx context.Context, db *sql.DB) ([]string, error) {
	applied, err := appliedHooks(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, h := range hooks {
		if !applied[h.Name] {
			pending = append(pending, h.Name)
		}
	}
	return pending, nil
}

// RunPendingHooks runs every hook whose schema version is applied and
// which has not run before, recording each in data_migrations.
func RunPendingHooks(ctx context.Context, db *sql.DB, schemaVersion uint) (int, error) {
	applied, err := appliedHooks(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, h := range hooks {
		if applied[h.Name] || h.SchemaVersion > schemaVersion {
			continue
		}
		slog.Info("running data migration hook", "name", h.Name, "schema_version", h.SchemaVersion)
		start := time.Now()
		if err := h.Fn(ctx, db); err != nil {
			return count, fmt.Errorf("data hook %q failed: %w", h.Name, err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO data_migrations (name, version, applied_at) VALUES ($1, $2, NOW())",
			h.Name, h.SchemaVersion,
		); err != nil {
			return count, fmt.Errorf("record hook %q: %w", h.Name, err)
		}
		slog.Info("data migration hook complete", "name", h.Name, "duration", time.Since(start))
		count++
	}
	return count, nil
}

func appliedHooks(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS data_migrations (
			name       VARCHAR(255) PRIMARY KEY,
			version    INT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("ensure data_migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM data_migrations")
	if err != nil {
		return nil, fmt.Errorf("query data_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
