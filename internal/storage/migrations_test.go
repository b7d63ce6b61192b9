package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	require.NoError(t, runner.Run(context.Background()))

	for _, table := range []string{"list_entries", "audit_log", "schema_migrations"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_IndexesCreated(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	expectedIndexes := []string{
		"idx_list_entries_list",
		"idx_list_entries_list_source",
		"idx_list_entries_list_pattern",
		"idx_audit_log_action_ts",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	runner := NewMigrationRunner(db)

	require.NoError(t, runner.Run(ctx))
	require.NoError(t, runner.Run(ctx), "second run should be a no-op")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)

	v, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMigrationRunner_VersionOnEmptyDB(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(ctx))

	_, err := db.Exec("DELETE FROM schema_migrations")
	require.NoError(t, err)

	v, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestMigrationV001_RejectsUnknownPatternType(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	_, err := db.Exec(`INSERT INTO list_entries (list_name, pattern, pattern_type, source, created_at, updated_at)
		VALUES ('l', 'p', 'glob', 'user', 'x', 'x')`)
	assert.Error(t, err)
}

func TestMigrationV001_UniqueKey(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	insert := `INSERT INTO list_entries (list_name, pattern, pattern_type, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'x', 'x')`
	_, err := db.Exec(insert, "l", "example.com", "domain", "user")
	require.NoError(t, err)

	_, err = db.Exec(insert, "l", "example.com", "domain", "backend")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	_, err = db.Exec(insert, "l", "example.com", "host", "backend")
	assert.NoError(t, err, "same pattern under another type is a different key")
}
