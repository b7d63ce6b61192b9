package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/listkeeper/internal/storage"
)

// Execute implements the go-flags Commander interface for ListsCommand.
func (c *ListsCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store)
}

// executeWithStore prints list names from a provided store (used by tests).
func (c *ListsCommand) executeWithStore(ctx context.Context, store storage.Store) error {
	names, err := store.ListNames(ctx)
	if err != nil {
		return fmt.Errorf("list names: %w", err)
	}

	if jsonOutput(c.globals) {
		if names == nil {
			names = []string{}
		}
		return printJSON(map[string]any{"lists": names})
	}

	if len(names) == 0 {
		fmt.Println("No lists.")
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// Execute implements the go-flags Commander interface for EntriesCommand.
func (c *EntriesCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store)
}

// executeWithStore prints the entries of a list from a provided store (used by tests).
func (c *EntriesCommand) executeWithStore(ctx context.Context, store storage.Store) error {
	var (
		entries []*storage.ListEntry
		err     error
	)
	if c.Source != "" {
		src, perr := storage.ParseSource(c.Source)
		if perr != nil {
			return perr
		}
		entries, err = store.GetByListAndSource(ctx, c.Args.List, src)
	} else {
		entries, err = store.GetByList(ctx, c.Args.List)
	}
	if err != nil {
		return fmt.Errorf("read entries: %w", err)
	}

	if jsonOutput(c.globals) {
		if entries == nil {
			entries = []*storage.ListEntry{}
		}
		return printJSON(map[string]any{"listName": c.Args.List, "entries": entries})
	}

	printEntries(entries)
	return nil
}
