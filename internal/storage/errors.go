package storage

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrValidation marks entries rejected before reaching the database:
	// missing fields, unknown pattern types or sources, and domain patterns
	// that are not bare registrable domains.
	ErrValidation = errors.New("validation failed")

	// ErrUniquenessViolation is returned when a write would create a second
	// entry with the same (list name, pattern type, pattern) key.
	ErrUniquenessViolation = errors.New("uniqueness violation")

	// ErrNotFound is returned for ids that do not exist.
	ErrNotFound = errors.New("entry not found")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
