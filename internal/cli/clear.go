package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/listkeeper/internal/storage"
)

// Execute implements the go-flags Commander interface for ClearCommand.
func (c *ClearCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store, os.Stdin)
}

// executeWithStore clears a list in a provided store, reading the
// confirmation from in (used by tests).
func (c *ClearCommand) executeWithStore(ctx context.Context, store storage.Store, in io.Reader) error {
	var src storage.Source
	if c.Source != "" {
		var err error
		if src, err = storage.ParseSource(c.Source); err != nil {
			return err
		}
	}

	if !c.Force {
		scope := "ALL entries"
		if src != "" {
			scope = fmt.Sprintf("all %s entries", src)
		}
		fmt.Printf("This will permanently delete %s of list %q.\n", scope, c.Args.List)
		ok, err := confirm(in, fmt.Sprintf("Type %q to confirm: ", c.Args.List), c.Args.List)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	n, err := store.DeleteAllInList(ctx, c.Args.List, src)
	if err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]any{"listName": c.Args.List, "source": string(src), "deleted": n})
	}
	fmt.Printf("Deleted %s entries from %s.\n", formatNumber(n), c.Args.List)
	return nil
}
