package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/listkeeper/internal/config"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string           `json:"version"`
	DatabasePath      string           `json:"database_path"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	TotalEntries      int64            `json:"total_entries"`
	TotalLists        int64            `json:"total_lists"`
	BySource          map[string]int64 `json:"by_source"`
	LastSync          string           `json:"last_sync,omitempty"`
	SyncSource        string           `json:"sync_source,omitempty"`
	SyncInterval      string           `json:"sync_interval"`
	TopLists          []listCountJSON  `json:"top_lists"`
}

type listCountJSON struct {
	ListName string `json:"list_name"`
	Count    int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	dbPath, err := e.cfg.Storage.DBPath()
	if err != nil {
		return err
	}
	return c.executeWithStore(ctx, e.store, e.cfg, dbPath)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(ctx context.Context, store storage.Store, cfg *config.Config, dbPath string) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if jsonOutput(c.globals) {
		return c.printStatusJSON(stats, cfg, dbPath)
	}
	return c.printStatusHuman(stats, cfg, dbPath)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, cfg *config.Config, dbPath string) error {
	fmt.Println("Listkeeper Status")
	fmt.Println("=================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(stats.DatabaseSizeBytes))
	fmt.Printf("Lists:         %s\n", formatNumber(stats.TotalLists))
	fmt.Printf("Entries:       %s\n", formatNumber(stats.TotalEntries))
	for _, src := range storage.Sources() {
		fmt.Printf("  %-11s  %s\n", src+":", formatNumber(stats.BySource[src]))
	}

	fmt.Println()
	if stats.LastSync.IsZero() {
		fmt.Println("Last sync:     never")
	} else {
		fmt.Printf("Last sync:     %s (%s ago)\n",
			stats.LastSync.Local().Format("2006-01-02 15:04:05"),
			formatDurationHuman(time.Since(stats.LastSync)))
	}
	if cfg.Sync.SourceFile != "" {
		fmt.Printf("Sync source:   %s\n", cfg.Sync.SourceFile)
	} else {
		fmt.Println("Sync source:   not configured")
	}
	if cfg.Sync.Interval > 0 {
		fmt.Printf("Sync interval: %s\n", formatDurationHuman(cfg.Sync.Interval))
	} else {
		fmt.Println("Sync interval: manual only")
	}

	if len(stats.TopLists) > 0 {
		fmt.Println()
		fmt.Println("Top Lists:")
		for _, l := range stats.TopLists {
			fmt.Printf("  %-20s %s\n", l.ListName, formatNumber(l.Count))
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, cfg *config.Config, dbPath string) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: stats.DatabaseSizeBytes,
		TotalEntries:      stats.TotalEntries,
		TotalLists:        stats.TotalLists,
		BySource:          make(map[string]int64, len(stats.BySource)),
		SyncSource:        cfg.Sync.SourceFile,
		SyncInterval:      cfg.Sync.Interval.String(),
		TopLists:          make([]listCountJSON, len(stats.TopLists)),
	}

	for _, src := range storage.Sources() {
		out.BySource[string(src)] = stats.BySource[src]
	}
	if !stats.LastSync.IsZero() {
		out.LastSync = stats.LastSync.UTC().Format(time.RFC3339)
	}
	for i, l := range stats.TopLists {
		out.TopLists[i] = listCountJSON{ListName: l.ListName, Count: l.Count}
	}

	return printJSON(out)
}
