package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store)
}

// executeWithStore runs the add logic against a provided store (used by tests).
func (c *AddCommand) executeWithStore(ctx context.Context, store storage.Store) error {
	pt, err := pattern.ParseType(c.Type)
	if err != nil {
		return err
	}
	src, err := storage.ParseSource(c.Source)
	if err != nil {
		return err
	}
	if src == storage.SourceBackend {
		return fmt.Errorf("backend entries are managed by sync")
	}

	entry := &storage.ListEntry{
		ListName:    c.Args.List,
		Pattern:     c.Args.Pattern,
		PatternType: pt,
		Source:      src,
		Metadata: storage.Metadata{
			Category:    c.Category,
			Description: c.Description,
			Tags:        c.Tags,
		},
	}

	id, err := store.Insert(ctx, entry)
	if errors.Is(err, storage.ErrUniquenessViolation) {
		return fmt.Errorf("%s pattern %q is already in list %s", pt, c.Args.Pattern, c.Args.List)
	}
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}

	stored, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput(c.globals) {
		return printJSON(stored)
	}
	fmt.Printf("Added entry %d to %s\n", stored.ID, stored.ListName)
	fmt.Printf("  Pattern: %s (%s)\n", stored.Pattern, stored.PatternType)
	fmt.Printf("  Source:  %s\n", stored.Source)
	return nil
}

// Execute implements the go-flags Commander interface for UpdateCommand.
func (c *UpdateCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store)
}

// patch builds the EntryPatch for the flags that were set. Metadata flags
// are applied on top of current.
func (c *UpdateCommand) patch(current *storage.ListEntry) (storage.EntryPatch, error) {
	var p storage.EntryPatch
	if c.List != "" {
		p.ListName = &c.List
	}
	if c.Pattern != "" {
		p.Pattern = &c.Pattern
	}
	if c.Type != "" {
		pt, err := pattern.ParseType(c.Type)
		if err != nil {
			return p, err
		}
		p.PatternType = &pt
	}
	if c.Source != "" {
		src, err := storage.ParseSource(c.Source)
		if err != nil {
			return p, err
		}
		p.Source = &src
	}
	if c.Category != "" || c.Description != "" || c.Tags != nil {
		md := current.Metadata.Clone()
		if c.Category != "" {
			md.Category = c.Category
		}
		if c.Description != "" {
			md.Description = c.Description
		}
		if c.Tags != nil {
			md.Tags = c.Tags
		}
		p.Metadata = &md
	}
	return p, nil
}

// executeWithStore runs the update logic against a provided store (used by tests).
func (c *UpdateCommand) executeWithStore(ctx context.Context, store storage.Store) error {
	current, err := store.Get(ctx, c.Args.ID)
	if err != nil {
		return fmt.Errorf("entry %d: %w", c.Args.ID, err)
	}

	p, err := c.patch(current)
	if err != nil {
		return err
	}
	if p == (storage.EntryPatch{}) {
		return fmt.Errorf("nothing to update")
	}

	updated, err := store.Update(ctx, c.Args.ID, p)
	if errors.Is(err, storage.ErrUniquenessViolation) {
		return fmt.Errorf("another entry already has that pattern in the target list")
	}
	if err != nil {
		return fmt.Errorf("update entry %d: %w", c.Args.ID, err)
	}

	if jsonOutput(c.globals) {
		return printJSON(updated)
	}
	fmt.Printf("Updated entry %d\n", updated.ID)
	printEntries([]*storage.ListEntry{updated})
	return nil
}

// Execute implements the go-flags Commander interface for RemoveCommand.
func (c *RemoveCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store)
}

// executeWithStore runs the remove logic against a provided store (used by tests).
func (c *RemoveCommand) executeWithStore(ctx context.Context, store storage.Store) error {
	existing, err := store.Get(ctx, c.Args.ID)
	if err != nil {
		return fmt.Errorf("entry %d: %w", c.Args.ID, err)
	}
	if err := store.DeleteByID(ctx, c.Args.ID); err != nil {
		return err
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]any{"removed": true, "entry": existing})
	}
	fmt.Printf("Removed entry %d (%s %s) from %s\n", existing.ID, existing.PatternType, existing.Pattern, existing.ListName)
	return nil
}
