package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/listkeeper/internal/backend"
	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/merge"
)

type syncJSON struct {
	Lists    []*merge.Report `json:"lists"`
	Warnings []string        `json:"warnings"`
	Errors   []string        `json:"errors"`
}

// Execute implements the go-flags Commander interface for SyncCommand.
func (c *SyncCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	path := c.File
	if path == "" {
		path = e.cfg.Sync.SourceFile
	}
	if path == "" {
		return fmt.Errorf("no payload file: pass --file or set sync.source_file")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Sync.Timeout)
	defer cancel()

	engine := merge.NewEngine(e.store, nil, e.logger, e.cfg.Sync.SourceName)
	return c.executeWithStore(ctx, backend.NewFileFetcher(path), engine, e.logger)
}

// executeWithStore fetches one payload and merges it with engine (used by tests).
func (c *SyncCommand) executeWithStore(ctx context.Context, f backend.Fetcher, engine *merge.Engine, log logger.Logger) error {
	payload, err := f.FetchPayload(ctx)
	if err != nil {
		return fmt.Errorf("fetch payload: %w", err)
	}
	for _, w := range payload.Warnings {
		log.Warn("payload warning", logger.String("warning", w))
	}

	report := engine.SyncAll(ctx, payload)

	if jsonOutput(c.globals) {
		out := syncJSON{Lists: report.Lists, Warnings: payload.Warnings, Errors: []string{}}
		if out.Lists == nil {
			out.Lists = []*merge.Report{}
		}
		if out.Warnings == nil {
			out.Warnings = []string{}
		}
		for _, le := range report.Errors {
			out.Errors = append(out.Errors, le.Error())
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return report.Err()
	}

	if len(report.Lists) == 0 && len(report.Errors) == 0 {
		fmt.Println("Payload carried no lists.")
	}
	for _, r := range report.Lists {
		fmt.Printf("%s: %d inserted, %d removed, %d displaced, %d skipped\n",
			r.ListName, r.Inserted, r.Removed, r.Displaced, len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Printf("  skipped #%d %s %q: %s\n", s.Index, s.PatternType, s.Pattern, s.Reason)
		}
	}
	for _, w := range payload.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return report.Err()
}
