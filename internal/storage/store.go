package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/listkeeper/internal/pattern"
)

// Store defines the list entry operations used by the merge engine, the
// import/export layer and the query surfaces.
type Store interface {
	Insert(ctx context.Context, e *ListEntry) (int64, error)
	BulkInsert(ctx context.Context, entries []*ListEntry) ([]int64, error)
	Get(ctx context.Context, id int64) (*ListEntry, error)
	GetByList(ctx context.Context, list string) ([]*ListEntry, error)
	GetByListAndSource(ctx context.Context, list string, source Source) ([]*ListEntry, error)
	FindByListAndDomain(ctx context.Context, list, p string) (*ListEntry, error)
	FindByListPatternTypeAndPattern(ctx context.Context, list string, t pattern.Type, p string) (*ListEntry, error)
	Update(ctx context.Context, id int64, patch EntryPatch) (*ListEntry, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteAllInList(ctx context.Context, list string, source Source) (int64, error)
	ReplaceList(ctx context.Context, list string, entries []*ListEntry) ([]int64, error)
	ListNames(ctx context.Context) ([]string, error)
	RecordAudit(ctx context.Context, action, list, detail string) error
	LastAudit(ctx context.Context, action string) (*AuditRecord, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// DomainValidator gates domain-type patterns. *pattern.Validator implements it.
type DomainValidator interface {
	ValidateDomainPattern(p string) error
}

// AuditSync is the audit action recorded for each merged backend list.
const AuditSync = "sync"

// AuditImport is the audit action recorded for each imported list.
const AuditImport = "import"

const entryColumns = `id, list_name, pattern, pattern_type, source, metadata, created_at, updated_at`

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	validator DomainValidator
	now       func() time.Time

	// Prepared statements
	insertEntry *sql.Stmt
	getEntry    *sql.Stmt
	findByKey   *sql.Stmt
	deleteEntry *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated
// database. A nil validator selects the public suffix list validator.
func NewSQLiteStore(db *sql.DB, validator DomainValidator) (*SQLiteStore, error) {
	if validator == nil {
		validator = pattern.NewValidator(nil)
	}
	s := &SQLiteStore{db: db, validator: validator, now: time.Now}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

// SetClock replaces the time source. Used by tests.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEntry, err = s.db.Prepare(`
		INSERT INTO list_entries (list_name, pattern, pattern_type, source, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getEntry, err = s.db.Prepare(`SELECT ` + entryColumns + ` FROM list_entries WHERE id = ?`)
	if err != nil {
		return err
	}

	s.findByKey, err = s.db.Prepare(`
		SELECT ` + entryColumns + ` FROM list_entries
		WHERE list_name = ? AND pattern_type = ? AND pattern = ?
	`)
	if err != nil {
		return err
	}

	s.deleteEntry, err = s.db.Prepare(`DELETE FROM list_entries WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) validate(e *ListEntry) error {
	return ValidateEntry(e, s.validator)
}

// ValidateEntry applies the write-time rules shared by every insert and
// update: required fields, known type and source, and the domain rule.
// A nil v selects the public suffix list validator.
func ValidateEntry(e *ListEntry, v DomainValidator) error {
	if strings.TrimSpace(e.ListName) == "" {
		return fmt.Errorf("%w: list name is required", ErrValidation)
	}
	if strings.TrimSpace(e.Pattern) == "" {
		return fmt.Errorf("%w: pattern is required", ErrValidation)
	}
	if e.PatternType == "" {
		return fmt.Errorf("%w: pattern type is required", ErrValidation)
	}
	if !e.PatternType.Valid() {
		return fmt.Errorf("%w: unknown pattern type %q", ErrValidation, string(e.PatternType))
	}
	if !e.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, string(e.Source))
	}
	if e.PatternType == pattern.Domain {
		if v == nil {
			v = pattern.NewValidator(nil)
		}
		if err := v.ValidateDomainPattern(e.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// stamp assigns the creation and update times for a new entry. A caller
// supplied CreatedAt is kept.
func (s *SQLiteStore) stamp(e *ListEntry) {
	now := s.now().UTC()
	if e.Metadata.CreatedAt.IsZero() {
		e.Metadata.CreatedAt = now
	}
	e.Metadata.CreatedAt = e.Metadata.CreatedAt.UTC()
	e.Metadata.UpdatedAt = laterOf(now, e.Metadata.CreatedAt)
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// encodeMetadata serializes metadata without the timestamps held in columns.
func encodeMetadata(m Metadata) (string, error) {
	c := m.Clone()
	c.CreatedAt = time.Time{}
	c.UpdatedAt = time.Time{}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*ListEntry, error) {
	var (
		e                ListEntry
		ptype, source    string
		meta             string
		created, updated string
	)
	if err := row.Scan(&e.ID, &e.ListName, &e.Pattern, &ptype, &source, &meta, &created, &updated); err != nil {
		return nil, err
	}
	e.PatternType = pattern.Type(ptype)
	e.Source = Source(source)

	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of entry %d: %w", e.ID, err)
		}
	}
	e.Metadata.CreatedAt, _ = parseTimestamp(created)
	e.Metadata.UpdatedAt, _ = parseTimestamp(updated)
	return &e, nil
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]*ListEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []*ListEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// insertWith writes a validated, stamped entry through stmt.
func insertWith(ctx context.Context, stmt *sql.Stmt, e *ListEntry) (int64, error) {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx,
		e.ListName, e.Pattern, string(e.PatternType), string(e.Source), meta,
		formatTimestamp(e.Metadata.CreatedAt), formatTimestamp(e.Metadata.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s/%s %q already exists", ErrUniquenessViolation, e.ListName, e.PatternType, e.Pattern)
		}
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return res.LastInsertId()
}

// Insert validates and stores a new entry. The entry's ID and timestamps are
// populated on success.
func (s *SQLiteStore) Insert(ctx context.Context, e *ListEntry) (int64, error) {
	if err := s.validate(e); err != nil {
		return 0, err
	}
	s.stamp(e)

	id, err := insertWith(ctx, s.insertEntry, e)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// BulkInsert stores all entries in one transaction. Any validation or
// uniqueness failure stores nothing.
func (s *SQLiteStore) BulkInsert(ctx context.Context, entries []*ListEntry) ([]int64, error) {
	for i, e := range entries {
		if err := s.validate(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	if len(entries) == 0 {
		return []int64{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids, err := s.insertAll(ctx, tx, entries)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	for i, e := range entries {
		e.ID = ids[i]
	}
	return ids, nil
}

func (s *SQLiteStore) insertAll(ctx context.Context, tx *sql.Tx, entries []*ListEntry) ([]int64, error) {
	stmt := tx.StmtContext(ctx, s.insertEntry)
	defer stmt.Close()

	ids := make([]int64, 0, len(entries))
	for i, e := range entries {
		s.stamp(e)
		id, err := insertWith(ctx, stmt, e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get retrieves a single entry by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*ListEntry, error) {
	e, err := scanEntry(s.getEntry.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// GetByList returns every entry of list in insertion order.
func (s *SQLiteStore) GetByList(ctx context.Context, list string) ([]*ListEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM list_entries WHERE list_name = ? ORDER BY id`, list)
}

// GetByListAndSource returns the entries of list created by source.
func (s *SQLiteStore) GetByListAndSource(ctx context.Context, list string, source Source) ([]*ListEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM list_entries WHERE list_name = ? AND source = ? ORDER BY id`,
		list, string(source))
}

// FindByListAndDomain returns the first entry of list whose pattern equals p,
// whatever its type, or nil.
func (s *SQLiteStore) FindByListAndDomain(ctx context.Context, list, p string) (*ListEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM list_entries WHERE list_name = ? AND pattern = ? ORDER BY id LIMIT 1`,
		list, p)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

// FindByListPatternTypeAndPattern returns the entry at the given key, or nil.
func (s *SQLiteStore) FindByListPatternTypeAndPattern(ctx context.Context, list string, t pattern.Type, p string) (*ListEntry, error) {
	e, err := scanEntry(s.findByKey.QueryRowContext(ctx, list, string(t), p))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

// Update merges patch into the entry with the given id. CreatedAt is never
// changed; UpdatedAt is refreshed.
func (s *SQLiteStore) Update(ctx context.Context, id int64, patch EntryPatch) (*ListEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := scanEntry(tx.StmtContext(ctx, s.getEntry).QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}

	next := *cur
	if patch.ListName != nil {
		next.ListName = *patch.ListName
	}
	if patch.Pattern != nil {
		next.Pattern = *patch.Pattern
	}
	if patch.PatternType != nil {
		next.PatternType = *patch.PatternType
	}
	if patch.Source != nil {
		next.Source = *patch.Source
	}
	if patch.Metadata != nil {
		next.Metadata = patch.Metadata.Clone()
	}
	next.Metadata.CreatedAt = cur.Metadata.CreatedAt
	next.Metadata.UpdatedAt = laterOf(s.now().UTC(), cur.Metadata.CreatedAt)

	if err := s.validate(&next); err != nil {
		return nil, err
	}

	meta, err := encodeMetadata(next.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE list_entries
		SET list_name = ?, pattern = ?, pattern_type = ?, source = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, next.ListName, next.Pattern, string(next.PatternType), string(next.Source), meta,
		formatTimestamp(next.Metadata.UpdatedAt), id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s %q already exists", ErrUniquenessViolation, next.ListName, next.PatternType, next.Pattern)
		}
		return nil, fmt.Errorf("update entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &next, nil
}

// DeleteByID removes an entry. Missing ids are not an error.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.deleteEntry.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// DeleteAllInList removes the entries of list created by source, or every
// entry of list when source is empty. It returns the number removed.
func (s *SQLiteStore) DeleteAllInList(ctx context.Context, list string, source Source) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if source == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM list_entries WHERE list_name = ?`, list)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM list_entries WHERE list_name = ? AND source = ?`, list, string(source))
	}
	if err != nil {
		return 0, fmt.Errorf("delete list %s: %w", list, err)
	}
	return res.RowsAffected()
}

// ReplaceList atomically removes every entry of list and inserts entries in
// its place. Each entry's ListName is set to list.
func (s *SQLiteStore) ReplaceList(ctx context.Context, list string, entries []*ListEntry) ([]int64, error) {
	for i, e := range entries {
		e.ListName = list
		if err := s.validate(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_entries WHERE list_name = ?`, list); err != nil {
		return nil, fmt.Errorf("clear list %s: %w", list, err)
	}

	ids, err := s.insertAll(ctx, tx, entries)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	for i, e := range entries {
		e.ID = ids[i]
	}
	return ids, nil
}

// ListNames returns the distinct list names in sorted order.
func (s *SQLiteStore) ListNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT list_name FROM list_entries ORDER BY list_name`)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// RecordAudit appends a row to the audit log.
func (s *SQLiteStore) RecordAudit(ctx context.Context, action, list, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, list_name, detail, ts) VALUES (?, ?, ?, ?)`,
		action, list, detail, formatTimestamp(s.now()),
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// LastAudit returns the most recent audit row for action, or nil.
func (s *SQLiteStore) LastAudit(ctx context.Context, action string) (*AuditRecord, error) {
	var (
		r  AuditRecord
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, action, list_name, detail, ts FROM audit_log WHERE action = ? ORDER BY id DESC LIMIT 1`,
		action,
	).Scan(&r.ID, &r.Action, &r.ListName, &r.Detail, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last audit: %w", err)
	}
	r.Timestamp, _ = parseTimestamp(ts)
	return &r, nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BySource: make(map[Source]int64)}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT list_name) FROM list_entries",
	).Scan(&stats.TotalEntries, &stats.TotalLists)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	srcRows, err := s.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM list_entries GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count by source: %w", err)
	}
	for srcRows.Next() {
		var (
			src string
			n   int64
		)
		if err := srcRows.Scan(&src, &n); err != nil {
			srcRows.Close()
			return nil, err
		}
		stats.BySource[Source(src)] = n
	}
	srcRows.Close()
	if err := srcRows.Err(); err != nil {
		return nil, err
	}

	last, err := s.LastAudit(ctx, AuditSync)
	if err != nil {
		return nil, err
	}
	if last != nil {
		stats.LastSync = last.Timestamp
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("page size: %w", err)
	}
	stats.DatabaseSizeBytes = pageCount * pageSize

	// Top lists
	rows, err := s.db.QueryContext(ctx,
		"SELECT list_name, COUNT(*) as cnt FROM list_entries GROUP BY list_name ORDER BY cnt DESC, list_name LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top lists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lc ListCount
		if err := rows.Scan(&lc.ListName, &lc.Count); err != nil {
			return nil, err
		}
		stats.TopLists = append(stats.TopLists, lc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertEntry, s.getEntry, s.findByKey, s.deleteEntry}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
