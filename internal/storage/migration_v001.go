package storage

import (
	"context"
	"database/sql"
)

// migrateV001 creates the list_entries table. The UNIQUE constraint on
// (list_name, pattern_type, pattern) is the authoritative uniqueness check
// for every write path.
func migrateV001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS list_entries (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			list_name    TEXT NOT NULL,
			pattern      TEXT NOT NULL,
			pattern_type TEXT NOT NULL CHECK (pattern_type IN ('domain', 'host', 'exact_url', 'host_path_prefix', 'regex')),
			source       TEXT NOT NULL CHECK (source IN ('backend', 'user', 'generated')),
			metadata     TEXT NOT NULL DEFAULT '{}',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			UNIQUE(list_name, pattern_type, pattern)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_list_entries_list         ON list_entries(list_name)`,
		`CREATE INDEX IF NOT EXISTS idx_list_entries_list_source  ON list_entries(list_name, source)`,
		`CREATE INDEX IF NOT EXISTS idx_list_entries_list_pattern ON list_entries(list_name, pattern)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 adds the audit log used to record syncs and imports.
func migrateV002(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			action    TEXT NOT NULL,
			list_name TEXT NOT NULL DEFAULT '',
			detail    TEXT NOT NULL DEFAULT '',
			ts        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action_ts ON audit_log(action, ts)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
