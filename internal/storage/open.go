package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the SQLite database at path, applies
// pending migrations and returns a ready store. journalMode is passed to
// SQLite as-is ("WAL", "DELETE", ...); empty keeps the driver default.
// Closing the returned *sql.DB is the caller's responsibility.
func Open(ctx context.Context, path, journalMode string, validator DomainValidator) (*SQLiteStore, *sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path, journalMode))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := NewMigrationRunner(db)
	if err := runner.Run(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	store, err := NewSQLiteStore(db, validator)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func dsn(path, journalMode string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	if journalMode != "" {
		params = append(params, "_journal_mode="+strings.ToUpper(journalMode))
	}
	return path + "?" + strings.Join(params, "&")
}
