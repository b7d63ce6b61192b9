package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/listkeeper/internal/config"
	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// env is what a command needs once configuration and storage are open.
type env struct {
	cfg    *config.Config
	store  *storage.SQLiteStore
	db     *sql.DB
	logger logger.Logger
}

func (e *env) close() {
	e.store.Close()
	e.db.Close()
	_ = e.logger.Sync()
}

// loadConfig reads the config named by --config, creating the default file
// when it does not exist yet.
func loadConfig(g *GlobalFlags) (*config.Config, error) {
	var path string
	if g != nil {
		path = g.Config
	}
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.LoadOrCreateAt(resolved)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg *config.Config, g *GlobalFlags) logger.Logger {
	level := cfg.Logging.Level
	if g != nil && g.Verbose {
		level = "debug"
	}
	return logger.New(level, cfg.Logging.Pretty)
}

// openEnv loads config, opens the database with migrations applied and
// builds the logger.
func openEnv(ctx context.Context, g *GlobalFlags) (*env, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.Storage.DBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	store, db, err := storage.Open(ctx, dbPath, cfg.Storage.SQLiteJournalMode, nil)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: store, db: db, logger: newLogger(cfg, g)}, nil
}

func jsonOutput(g *GlobalFlags) bool {
	return g != nil && g.JSON
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm prompts on stdout and reads one line from in. It returns true only
// when the answer equals want.
func confirm(in io.Reader, prompt, want string) (bool, error) {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false, fmt.Errorf("aborted: no input received")
	}
	return strings.TrimSpace(scanner.Text()) == want, nil
}

// formatDurationHuman formats a duration into a human-readable string like "3 hours".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes > 0 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// printEntries writes entries as an aligned table.
func printEntries(entries []*storage.ListEntry) {
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("%6d  %-16s  %-9s  %s", e.ID, e.PatternType, e.Source, e.Pattern)
		if e.Metadata.Category != "" {
			line += "  [" + e.Metadata.Category + "]"
		}
		fmt.Println(line)
	}
}
