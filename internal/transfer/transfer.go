// Package transfer exports a list to a portable JSON document and imports
// such documents back, replacing the target list.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/runnerr0/listkeeper/internal/pattern"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// FormatVersion is the document version written by Export and accepted by Import.
const FormatVersion = 1

// ErrMalformedInput is returned for documents that cannot be imported at all.
var ErrMalformedInput = errors.New("malformed import document")

// Document is the export format of one list.
type Document struct {
	ListName   string          `json:"listName"`
	ExportedAt int64           `json:"exportedAt"` // epoch milliseconds
	Version    int             `json:"version"`
	Entries    []DocumentEntry `json:"entries"`
}

// DocumentEntry is one exported entry. Ids and sources are not exported.
type DocumentEntry struct {
	Pattern     string           `json:"pattern"`
	PatternType string           `json:"patternType"`
	Metadata    storage.Metadata `json:"metadata"`
}

// Skip describes a document entry that was not imported.
type Skip struct {
	Index   int    `json:"index"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// ImportReport summarizes an import.
type ImportReport struct {
	ListName string `json:"listName"`
	Imported int    `json:"imported"`
	Skipped  []Skip `json:"skipped"`
}

// Export builds the document for list. Entries keep storage order.
func Export(ctx context.Context, store storage.Store, list string, now time.Time) (*Document, error) {
	entries, err := store.GetByList(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("read list %s: %w", list, err)
	}

	doc := &Document{
		ListName:   list,
		ExportedAt: now.UnixMilli(),
		Version:    FormatVersion,
		Entries:    make([]DocumentEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, DocumentEntry{
			Pattern:     e.Pattern,
			PatternType: string(e.PatternType),
			Metadata:    e.Metadata,
		})
	}
	return doc, nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode parses a document. A missing version is read as FormatVersion.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedInput, doc.Version)
	}
	return &doc, nil
}

// Importer loads documents into a store.
type Importer struct {
	store     storage.Store
	validator storage.DomainValidator
}

// NewImporter creates an Importer. A nil validator selects the public suffix
// list validator.
func NewImporter(store storage.Store, validator storage.DomainValidator) *Importer {
	if validator == nil {
		validator = pattern.NewValidator(nil)
	}
	return &Importer{store: store, validator: validator}
}

// Import replaces every entry of list, whatever its source, with the valid
// entries of doc tagged with source. An empty list imports into
// doc.ListName. Invalid and duplicate entries are skipped and reported.
func (im *Importer) Import(ctx context.Context, doc *Document, list string, source storage.Source) (*ImportReport, error) {
	if list == "" {
		list = doc.ListName
	}
	if list == "" {
		return nil, fmt.Errorf("%w: no target list name", ErrMalformedInput)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", storage.ErrValidation, string(source))
	}

	report := &ImportReport{ListName: list, Skipped: []Skip{}}
	entries := make([]*storage.ListEntry, 0, len(doc.Entries))
	seen := make(map[storage.EntryKey]int, len(doc.Entries))

	for i, de := range doc.Entries {
		e := &storage.ListEntry{
			ListName:    list,
			Pattern:     de.Pattern,
			PatternType: pattern.Type(de.PatternType),
			Source:      source,
			Metadata:    de.Metadata.Clone(),
		}
		if err := storage.ValidateEntry(e, im.validator); err != nil {
			report.Skipped = append(report.Skipped, Skip{Index: i, Pattern: de.Pattern, Reason: err.Error()})
			continue
		}
		if first, dup := seen[e.Key()]; dup {
			report.Skipped = append(report.Skipped, Skip{Index: i, Pattern: de.Pattern, Reason: fmt.Sprintf("duplicate of entry %d", first)})
			continue
		}
		seen[e.Key()] = i
		entries = append(entries, e)
	}

	if _, err := im.store.ReplaceList(ctx, list, entries); err != nil {
		return nil, fmt.Errorf("replace list %s: %w", list, err)
	}
	report.Imported = len(entries)

	detail := fmt.Sprintf("source=%s imported=%d skipped=%d", source, report.Imported, len(report.Skipped))
	if err := im.store.RecordAudit(ctx, storage.AuditImport, list, detail); err != nil {
		return nil, err
	}
	return report, nil
}

// ImportReader decodes a document from r and imports it.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, list string, source storage.Source) (*ImportReport, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, doc, list, source)
}
