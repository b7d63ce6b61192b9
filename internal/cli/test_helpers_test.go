package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/listkeeper/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	w.Close()
	os.Stdout = old
	return <-done
}

// testStore opens a migrated SQLite store in a temporary directory.
func testStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	store, db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), "wal", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store
}

// mustInsert adds entries to store, failing the test on error.
func mustInsert(t *testing.T, store storage.Store, entries ...*storage.ListEntry) []int64 {
	t.Helper()
	ids, err := store.BulkInsert(context.Background(), entries)
	require.NoError(t, err)
	return ids
}
