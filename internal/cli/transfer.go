package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/runnerr0/listkeeper/internal/storage"
	"github.com/runnerr0/listkeeper/internal/transfer"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store, time.Now())
}

// executeWithStore exports a list from a provided store (used by tests).
func (c *ExportCommand) executeWithStore(ctx context.Context, store storage.Store, now time.Time) error {
	doc, err := transfer.Export(ctx, store, c.Args.List, now)
	if err != nil {
		return err
	}

	if c.Output == "" {
		return transfer.Encode(os.Stdout, doc)
	}

	f, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Output, err)
	}
	if err := transfer.Encode(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", c.Output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", c.Output, err)
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]any{"listName": doc.ListName, "entries": len(doc.Entries), "file": c.Output})
	}
	fmt.Printf("Exported %d entries of %s to %s\n", len(doc.Entries), doc.ListName, c.Output)
	return nil
}

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	var in io.Reader = os.Stdin
	if c.Args.File != "-" {
		f, err := os.Open(c.Args.File)
		if err != nil {
			return fmt.Errorf("open %s: %w", c.Args.File, err)
		}
		defer f.Close()
		in = f
	}

	return c.executeWithStore(ctx, e.store, in)
}

// executeWithStore imports a document read from in into a provided store (used by tests).
func (c *ImportCommand) executeWithStore(ctx context.Context, store storage.Store, in io.Reader) error {
	src, err := storage.ParseSource(c.Source)
	if err != nil {
		return err
	}

	report, err := transfer.NewImporter(store, nil).ImportReader(ctx, in, c.List, src)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	if jsonOutput(c.globals) {
		return printJSON(report)
	}
	fmt.Printf("Imported %d entries into %s\n", report.Imported, report.ListName)
	for _, s := range report.Skipped {
		fmt.Printf("  skipped #%d %q: %s\n", s.Index, s.Pattern, s.Reason)
	}
	return nil
}
