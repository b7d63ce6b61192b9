// Package merge reconciles backend-supplied candidates with the entries
// already stored for a list.
//
// Backend configuration owns every source=backend entry of a list: a merge
// first removes them all, then removes any user or generated entry sitting on
// a key the new batch is about to claim, and finally inserts the valid
// candidates as one batch. Entries at other keys are never touched.
package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/runnerr0/listkeeper/internal/backend"
	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// DefaultSourceName is stamped into SyncSource when no name is configured.
const DefaultSourceName = "backend"

// Skip describes a candidate dropped from a merge.
type Skip struct {
	Index       int    `json:"index"`
	Pattern     string `json:"pattern"`
	PatternType string `json:"patternType"`
	Reason      string `json:"reason"`
}

// Report summarizes the merge of one list.
type Report struct {
	ListName  string    `json:"listName"`
	SyncedAt  time.Time `json:"syncedAt"`
	Removed   int64     `json:"removed"`   // previous backend entries
	Displaced int       `json:"displaced"` // user or generated entries replaced at the same key
	Inserted  int       `json:"inserted"`
	Skipped   []Skip    `json:"skipped"`
}

// ListError pairs a list with the store failure that aborted its merge.
type ListError struct {
	ListName string
	Err      error
}

func (e ListError) Error() string { return fmt.Sprintf("list %s: %v", e.ListName, e.Err) }
func (e ListError) Unwrap() error { return e.Err }

// SyncReport is the outcome of reconciling a whole payload.
type SyncReport struct {
	Lists  []*Report
	Errors []ListError
}

// Err joins the per-list failures, or returns nil when every list merged.
func (r *SyncReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Engine merges backend candidates into the store.
type Engine struct {
	store      storage.Store
	validator  storage.DomainValidator
	logger     logger.Logger
	sourceName string
	now        func() time.Time
}

// NewEngine creates an Engine. A nil validator selects the public suffix list
// validator; an empty sourceName selects DefaultSourceName.
func NewEngine(store storage.Store, validator storage.DomainValidator, log logger.Logger, sourceName string) *Engine {
	if validator == nil {
		validator = pattern.NewValidator(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	if sourceName == "" {
		sourceName = DefaultSourceName
	}
	return &Engine{
		store:      store,
		validator:  validator,
		logger:     log,
		sourceName: sourceName,
		now:        time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// MergeBackendList makes the backend entries of list equal to the valid
// candidates. Invalid candidates are reported in Report.Skipped; only store
// failures return an error.
func (e *Engine) MergeBackendList(ctx context.Context, list string, candidates []backend.Candidate) (*Report, error) {
	return e.mergeList(ctx, list, candidates, e.now().UTC())
}

func (e *Engine) mergeList(ctx context.Context, list string, candidates []backend.Candidate, syncedAt time.Time) (*Report, error) {
	log := e.logger.With(logger.String("list", list))
	report := &Report{ListName: list, SyncedAt: syncedAt, Skipped: []Skip{}}

	removed, err := e.store.DeleteAllInList(ctx, list, storage.SourceBackend)
	if err != nil {
		return nil, fmt.Errorf("remove backend entries: %w", err)
	}
	report.Removed = removed

	for _, c := range candidates {
		existing, err := e.store.FindByListPatternTypeAndPattern(ctx, list, pattern.Type(c.PatternType), c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("look up %s %q: %w", c.PatternType, c.Pattern, err)
		}
		if existing == nil {
			continue
		}
		if err := e.store.DeleteByID(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("displace entry %d: %w", existing.ID, err)
		}
		report.Displaced++
		log.Info("backend entry replaces local entry",
			logger.Int64("id", existing.ID),
			logger.String("source", string(existing.Source)),
			logger.String("pattern", existing.Pattern))
	}

	survivors := make([]*storage.ListEntry, 0, len(candidates))
	indexes := make([]int, 0, len(candidates))
	seen := make(map[storage.EntryKey]int, len(candidates))
	for i, c := range candidates {
		entry := e.toEntry(list, c, report.SyncedAt)

		if reason := e.check(entry); reason != "" {
			e.skip(log, report, i, c, reason)
			continue
		}
		if first, dup := seen[entry.Key()]; dup {
			e.skip(log, report, i, c, fmt.Sprintf("duplicate of candidate %d", first))
			continue
		}
		seen[entry.Key()] = i
		survivors = append(survivors, entry)
		indexes = append(indexes, i)
	}

	if _, err := e.store.BulkInsert(ctx, survivors); err != nil {
		if !errors.Is(err, storage.ErrUniquenessViolation) {
			return nil, fmt.Errorf("insert backend entries: %w", err)
		}
		log.Warn("batch insert hit a uniqueness violation, inserting one at a time", logger.Error(err))
		if err := e.insertEach(ctx, log, report, survivors, indexes); err != nil {
			return nil, err
		}
	} else {
		report.Inserted = len(survivors)
	}

	log.Info("backend list merged",
		logger.Int64("removed", report.Removed),
		logger.Int("displaced", report.Displaced),
		logger.Int("inserted", report.Inserted),
		logger.Int("skipped", len(report.Skipped)))

	return report, nil
}

// insertEach is the fallback after a failed batch: a uniqueness violation is
// fatal only for the candidate that caused it.
func (e *Engine) insertEach(ctx context.Context, log logger.Logger, report *Report, entries []*storage.ListEntry, indexes []int) error {
	for i, entry := range entries {
		if _, err := e.store.Insert(ctx, entry); err != nil {
			if errors.Is(err, storage.ErrUniquenessViolation) || errors.Is(err, storage.ErrValidation) {
				report.Skipped = append(report.Skipped, Skip{
					Index:       indexes[i],
					Pattern:     entry.Pattern,
					PatternType: string(entry.PatternType),
					Reason:      err.Error(),
				})
				log.Warn("backend candidate rejected by store",
					logger.String("pattern", entry.Pattern), logger.Error(err))
				continue
			}
			return fmt.Errorf("insert backend entry %q: %w", entry.Pattern, err)
		}
		report.Inserted++
	}
	return nil
}

func (e *Engine) toEntry(list string, c backend.Candidate, syncedAt time.Time) *storage.ListEntry {
	var meta storage.Metadata
	if c.Metadata != nil {
		meta = c.Metadata.Clone()
	}
	meta.SyncTimestamp = syncedAt
	meta.SyncSource = e.sourceName

	return &storage.ListEntry{
		ListName:    list,
		Pattern:     c.Pattern,
		PatternType: pattern.Type(c.PatternType),
		Source:      storage.SourceBackend,
		Metadata:    meta,
	}
}

// check returns why entry cannot be stored, or "".
func (e *Engine) check(entry *storage.ListEntry) string {
	if err := storage.ValidateEntry(entry, e.validator); err != nil {
		return err.Error()
	}
	return ""
}

func (e *Engine) skip(log logger.Logger, report *Report, i int, c backend.Candidate, reason string) {
	report.Skipped = append(report.Skipped, Skip{
		Index:       i,
		Pattern:     c.Pattern,
		PatternType: c.PatternType,
		Reason:      reason,
	})
	log.Warn("backend candidate skipped",
		logger.Int("index", i),
		logger.String("pattern", c.Pattern),
		logger.String("pattern_type", c.PatternType),
		logger.String("reason", reason))
}

// SyncAll merges every list of the payload, one at a time in name order. All
// lists share one sync timestamp. A store failure aborts only the list it
// happened in.
func (e *Engine) SyncAll(ctx context.Context, p *backend.Payload) *SyncReport {
	out := &SyncReport{}
	syncedAt := e.now().UTC()
	for _, name := range p.Names() {
		report, err := e.mergeList(ctx, name, p.Lists[name], syncedAt)
		if err != nil {
			e.logger.Error("backend list merge failed", logger.String("list", name), logger.Error(err))
			out.Errors = append(out.Errors, ListError{ListName: name, Err: err})
			continue
		}
		out.Lists = append(out.Lists, report)

		detail := fmt.Sprintf("removed=%d displaced=%d inserted=%d skipped=%d",
			report.Removed, report.Displaced, report.Inserted, len(report.Skipped))
		if err := e.store.RecordAudit(ctx, storage.AuditSync, name, detail); err != nil {
			e.logger.Warn("audit record failed", logger.String("list", name), logger.Error(err))
		}
	}
	return out
}

// Reconcile implements backend.Reconciler.
func (e *Engine) Reconcile(ctx context.Context, p *backend.Payload) error {
	return e.SyncAll(ctx, p).Err()
}
