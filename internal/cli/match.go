package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/lookup"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// Execute implements the go-flags Commander interface for MatchCommand.
func (c *MatchCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	return c.executeWithStore(ctx, e.store, e.logger)
}

// executeWithStore matches against a list in a provided store (used by tests).
func (c *MatchCommand) executeWithStore(ctx context.Context, store storage.Store, log logger.Logger) error {
	checker := lookup.NewChecker(store, nil, log)
	cl, err := checker.Compile(ctx, c.Args.List)
	if err != nil {
		return err
	}

	var hits []*storage.ListEntry
	if c.All {
		hits = cl.MatchAll(c.Args.URL)
	} else if e, ok := cl.Match(c.Args.URL); ok {
		hits = []*storage.ListEntry{e}
	}

	if jsonOutput(c.globals) {
		if c.All {
			if hits == nil {
				hits = []*storage.ListEntry{}
			}
			return printJSON(map[string]any{
				"listName": c.Args.List,
				"url":      c.Args.URL,
				"matched":  len(hits) > 0,
				"entries":  hits,
			})
		}
		res := &lookup.Result{ListName: c.Args.List, URL: c.Args.URL, Matched: len(hits) > 0}
		if res.Matched {
			res.Entry = hits[0]
		}
		return printJSON(res)
	}

	if len(hits) == 0 {
		fmt.Printf("no match: %s is not in %s\n", c.Args.URL, c.Args.List)
		return nil
	}
	fmt.Printf("match: %s is in %s\n", c.Args.URL, c.Args.List)
	printEntries(hits)
	return nil
}
