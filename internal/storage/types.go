package storage

import (
	"fmt"
	"time"

	"github.com/runnerr0/listkeeper/internal/pattern"
)

// Source records who created an entry.
type Source string

const (
	SourceBackend   Source = "backend"
	SourceUser      Source = "user"
	SourceGenerated Source = "generated"
)

// Sources returns every known source.
func Sources() []Source {
	return []Source{SourceBackend, SourceUser, SourceGenerated}
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceBackend, SourceUser, SourceGenerated:
		return true
	}
	return false
}

// ParseSource converts a flag or query value into a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.Valid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrValidation, s)
	}
	return src, nil
}

// ListEntry is one pattern in a named list.
type ListEntry struct {
	ID          int64        `json:"id"`
	ListName    string       `json:"listName"`
	Pattern     string       `json:"pattern"`
	PatternType pattern.Type `json:"patternType"`
	Source      Source       `json:"source"`
	Metadata    Metadata     `json:"metadata"`
}

// Key returns the uniqueness key of the entry.
func (e *ListEntry) Key() EntryKey {
	return EntryKey{ListName: e.ListName, PatternType: e.PatternType, Pattern: e.Pattern}
}

// EntryKey is the (list name, pattern type, pattern) triple that is unique
// across all sources.
type EntryKey struct {
	ListName    string
	PatternType pattern.Type
	Pattern     string
}

// EntryPatch holds the fields an Update replaces. Nil fields are left as is.
type EntryPatch struct {
	ListName    *string
	Pattern     *string
	PatternType *pattern.Type
	Source      *Source
	Metadata    *Metadata
}

// Stats holds aggregate statistics about the list database.
type Stats struct {
	TotalEntries      int64
	TotalLists        int64
	BySource          map[Source]int64
	LastSync          time.Time
	DatabaseSizeBytes int64
	TopLists          []ListCount
}

// ListCount pairs a list name with its entry count.
type ListCount struct {
	ListName string
	Count    int64
}

// AuditRecord is one row of the audit log.
type AuditRecord struct {
	ID        int64
	Action    string
	ListName  string
	Detail    string
	Timestamp time.Time
}
