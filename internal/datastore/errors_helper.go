package datastore

import (
	"strings"

	"github.com/scribe-notes/scribe/internal/errors"
	"gorm.io/gorm"
)

// wrapStoreError classifies a gorm error into the application taxonomy:
// record-not-found stays an expected CategoryNotFound, unique-constraint
// violations become retryable CategoryConflict, everything else is a
// CategoryDatabase failure.
func wrapStoreError(err error, operation, key, value string) error {
	category := errors.CategoryDatabase
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		category = errors.CategoryNotFound
	case isUniqueViolation(err):
		category = errors.CategoryConflict
	}

	return errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation).
		Context(key, value).
		Build()
}

// isUniqueViolation detects duplicate-key errors across both supported
// backends. gorm.ErrDuplicatedKey requires driver translation support, so
// the message checks stay as a fallback for SQLite and MySQL.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") // mysql
}
