package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// Execute implements the go-flags Commander interface for SeedCommand.
func (c *SeedCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	list := c.List
	if list == "" {
		list = e.cfg.Seed.List
	}
	return c.executeWithStore(ctx, e.store, list, e.cfg.Seed.SeedDomains())
}

// executeWithStore adds domains to list in a provided store (used by tests).
// Registrable domains become domain entries; anything narrower becomes a
// host entry. Patterns already present are left alone.
func (c *SeedCommand) executeWithStore(ctx context.Context, store storage.Store, list string, domains []string) error {
	v := pattern.NewValidator(nil)

	var (
		added   []*storage.ListEntry
		present int
		seen    = make(map[storage.EntryKey]struct{}, len(domains))
	)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		pt := pattern.Domain
		if !v.IsValidDomainPattern(d) {
			pt = pattern.Host
		}
		e := &storage.ListEntry{
			ListName:    list,
			Pattern:     d,
			PatternType: pt,
			Source:      storage.SourceGenerated,
			Metadata:    storage.Metadata{Category: "sensitive"},
		}
		if _, dup := seen[e.Key()]; dup {
			continue
		}
		seen[e.Key()] = struct{}{}

		existing, err := store.FindByListPatternTypeAndPattern(ctx, list, pt, d)
		if err != nil {
			return err
		}
		if existing != nil {
			present++
			continue
		}
		added = append(added, e)
	}

	if len(added) > 0 {
		if _, err := store.BulkInsert(ctx, added); err != nil {
			return fmt.Errorf("seed %s: %w", list, err)
		}
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]any{"listName": list, "added": len(added), "present": present})
	}
	fmt.Printf("Seeded %s: %d added, %d already present\n", list, len(added), present)
	return nil
}
