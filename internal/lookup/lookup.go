// Package lookup answers "does this URL match list L?" by compiling a list's
// entries once and evaluating many URLs against them.
package lookup

import (
	"context"
	"fmt"

	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

type rule struct {
	entry    *storage.ListEntry
	compiled pattern.Compiled
}

// CompiledList is a snapshot of one list ready for matching.
type CompiledList struct {
	Name string

	// Unusable counts stored entries that can never match (bad regex,
	// host_path_prefix without a path, ...).
	Unusable int

	rules []rule
}

// Len returns the number of usable entries.
func (l *CompiledList) Len() int { return len(l.rules) }

// Match returns the first entry, in storage order, that matches rawURL.
func (l *CompiledList) Match(rawURL string) (*storage.ListEntry, bool) {
	target, err := pattern.ParseTarget(rawURL)
	if err != nil {
		return nil, false
	}
	for _, r := range l.rules {
		if r.compiled.Match(target) {
			return r.entry, true
		}
	}
	return nil, false
}

// MatchAll returns every entry matching rawURL.
func (l *CompiledList) MatchAll(rawURL string) []*storage.ListEntry {
	target, err := pattern.ParseTarget(rawURL)
	if err != nil {
		return nil
	}
	var out []*storage.ListEntry
	for _, r := range l.rules {
		if r.compiled.Match(target) {
			out = append(out, r.entry)
		}
	}
	return out
}

// Checker compiles lists read from a store.
type Checker struct {
	store   storage.Store
	matcher *pattern.Matcher
	logger  logger.Logger
}

// NewChecker creates a Checker. A nil matcher selects the public suffix list
// matcher.
func NewChecker(store storage.Store, m *pattern.Matcher, log logger.Logger) *Checker {
	if m == nil {
		m = pattern.NewMatcher(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{store: store, matcher: m, logger: log}
}

// Compile reads list and compiles its entries.
func (c *Checker) Compile(ctx context.Context, list string) (*CompiledList, error) {
	entries, err := c.store.GetByList(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("read list %s: %w", list, err)
	}

	cl := &CompiledList{Name: list, rules: make([]rule, 0, len(entries))}
	for _, e := range entries {
		compiled, err := c.matcher.Compile(e.Pattern, e.PatternType)
		if err != nil {
			cl.Unusable++
			c.logger.Debug("entry can never match",
				logger.String("list", list),
				logger.Int64("id", e.ID),
				logger.Error(err))
			continue
		}
		cl.rules = append(cl.rules, rule{entry: e, compiled: compiled})
	}
	return cl, nil
}

// Result is the answer to a single match query.
type Result struct {
	ListName string             `json:"listName"`
	URL      string             `json:"url"`
	Matched  bool               `json:"matched"`
	Entry    *storage.ListEntry `json:"entry,omitempty"`
}

// Match compiles list and tests rawURL against it.
func (c *Checker) Match(ctx context.Context, list, rawURL string) (*Result, error) {
	cl, err := c.Compile(ctx, list)
	if err != nil {
		return nil, err
	}
	entry, ok := cl.Match(rawURL)
	return &Result{ListName: list, URL: rawURL, Matched: ok, Entry: entry}, nil
}
