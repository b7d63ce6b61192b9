package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

func newAdd(list, p, typ string) *AddCommand {
	c := &AddCommand{Type: typ, Source: "user", globals: &GlobalFlags{}}
	c.Args.List = list
	c.Args.Pattern = p
	return c
}

func TestAddCommand_Domain(t *testing.T) {
	store := testStore(t)
	cmd := newAdd("blocked", "example.com", "domain")
	cmd.Category = "news"
	cmd.Tags = []string{"a", "b"}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(context.Background(), store))
	})
	assert.Contains(t, output, "Added entry")
	assert.Contains(t, output, "example.com (domain)")

	entries, err := store.GetByList(context.Background(), "blocked")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, storage.SourceUser, entries[0].Source)
	assert.Equal(t, "news", entries[0].Metadata.Category)
	assert.Equal(t, []string{"a", "b"}, entries[0].Metadata.Tags)
	assert.False(t, entries[0].Metadata.CreatedAt.IsZero())
}

func TestAddCommand_JSON(t *testing.T) {
	store := testStore(t)
	cmd := newAdd("blocked", "example.com/maps", "host_path_prefix")
	cmd.globals.JSON = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(context.Background(), store))
	})

	var got storage.ListEntry
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	assert.NotZero(t, got.ID)
	assert.Equal(t, pattern.HostPathPrefix, got.PatternType)
	assert.Equal(t, "example.com/maps", got.Pattern)
}

func TestAddCommand_RejectsSubdomainAsDomain(t *testing.T) {
	store := testStore(t)
	err := newAdd("blocked", "mail.google.com", "domain").executeWithStore(context.Background(), store)
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestAddCommand_RejectsUnknownType(t *testing.T) {
	store := testStore(t)
	err := newAdd("blocked", "example.com", "glob").executeWithStore(context.Background(), store)
	assert.ErrorIs(t, err, pattern.ErrUnknownType)
}

func TestAddCommand_RejectsBackendSource(t *testing.T) {
	store := testStore(t)
	cmd := newAdd("blocked", "example.com", "domain")
	cmd.Source = "backend"

	err := cmd.executeWithStore(context.Background(), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "managed by sync")
}

func TestAddCommand_Duplicate(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	captureOutput(t, func() {
		require.NoError(t, newAdd("blocked", "example.com", "domain").executeWithStore(ctx, store))
	})

	err := newAdd("blocked", "example.com", "domain").executeWithStore(ctx, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in list blocked")

	// Same pattern under another type is a different entry.
	captureOutput(t, func() {
		require.NoError(t, newAdd("blocked", "example.com", "host").executeWithStore(ctx, store))
	})
}

func TestUpdateCommand_MetadataMerges(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	ids := mustInsert(t, store, &storage.ListEntry{
		ListName: "blocked", Pattern: "example.com", PatternType: pattern.Domain, Source: storage.SourceUser,
		Metadata: storage.Metadata{Category: "old", Tags: []string{"keep"}},
	})

	cmd := &UpdateCommand{Category: "new", globals: &GlobalFlags{}}
	cmd.Args.ID = ids[0]
	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(ctx, store))
	})

	got, err := store.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "new", got.Metadata.Category)
	assert.Equal(t, []string{"keep"}, got.Metadata.Tags)
}

func TestUpdateCommand_MoveAndRetype(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	ids := mustInsert(t, store, &storage.ListEntry{
		ListName: "blocked", Pattern: "example.com", PatternType: pattern.Domain, Source: storage.SourceUser,
	})

	cmd := &UpdateCommand{List: "allowed", Type: "host", Pattern: "www.example.com", globals: &GlobalFlags{}}
	cmd.Args.ID = ids[0]
	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(ctx, store))
	})

	got, err := store.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "allowed", got.ListName)
	assert.Equal(t, pattern.Host, got.PatternType)
	assert.Equal(t, "www.example.com", got.Pattern)
}

func TestUpdateCommand_NothingToUpdate(t *testing.T) {
	store := testStore(t)
	ids := mustInsert(t, store, &storage.ListEntry{
		ListName: "blocked", Pattern: "example.com", PatternType: pattern.Domain, Source: storage.SourceUser,
	})

	cmd := &UpdateCommand{globals: &GlobalFlags{}}
	cmd.Args.ID = ids[0]
	err := cmd.executeWithStore(context.Background(), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestUpdateCommand_Conflict(t *testing.T) {
	store := testStore(t)
	ids := mustInsert(t, store,
		&storage.ListEntry{ListName: "blocked", Pattern: "example.com", PatternType: pattern.Domain, Source: storage.SourceUser},
		&storage.ListEntry{ListName: "blocked", Pattern: "example.org", PatternType: pattern.Domain, Source: storage.SourceUser},
	)

	cmd := &UpdateCommand{Pattern: "example.com", globals: &GlobalFlags{}}
	cmd.Args.ID = ids[1]
	err := cmd.executeWithStore(context.Background(), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has that pattern")
}

func TestUpdateCommand_MissingID(t *testing.T) {
	store := testStore(t)
	cmd := &UpdateCommand{Pattern: "example.com", globals: &GlobalFlags{}}
	cmd.Args.ID = 99
	assert.ErrorIs(t, cmd.executeWithStore(context.Background(), store), storage.ErrNotFound)
}

func TestRemoveCommand(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	ids := mustInsert(t, store, &storage.ListEntry{
		ListName: "blocked", Pattern: "example.com", PatternType: pattern.Domain, Source: storage.SourceUser,
	})

	cmd := &RemoveCommand{globals: &GlobalFlags{}}
	cmd.Args.ID = ids[0]
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(ctx, store))
	})
	assert.Contains(t, output, "Removed entry")

	_, err := store.Get(ctx, ids[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, cmd.executeWithStore(ctx, store), storage.ErrNotFound)
}
