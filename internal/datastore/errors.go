// errors.go: error constructors and classifiers for database operations

package datastore

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

// notFoundError reports a database file that does not exist at call time.
func notFoundError(path string) error {
	return errors.Newf("database not found: %s", path).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("path", path).
		Build()
}

// detectionNotFoundError reports an id with no matching row.
func detectionNotFoundError(id string) error {
	return errors.Newf("detection not found: %s", id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("detection_id", id).
		Build()
}

// schemaError reports a database with neither supported layout.
func schemaError(operation string) error {
	return errors.Newf("unsupported database schema: expected tables detections+labels or notes").
		Component("datastore").
		Category(errors.CategorySchema).
		Context("operation", operation).
		Build()
}

// storageError wraps a lower-level access failure, recording driver codes
// when the driver exposes them.
func storageError(err error, operation string) error {
	return storageErrorBuilder(err, operation).Build()
}

// timedStorageError is storageError for a failed query, recording how long
// the operation ran before failing.
func timedStorageError(err error, operation string, elapsed time.Duration) error {
	return storageErrorBuilder(err, operation).Timing(operation, elapsed).Build()
}

func storageErrorBuilder(err error, operation string) *errors.ErrorBuilder {
	builder := errors.New(fmt.Errorf("%s: %w", operation, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		builder = builder.
			Context("sqlite_code", sqliteErr.Code.Error()).
			Context("transient", isTransientSQLite(sqliteErr))
	}

	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		builder = builder.Context("mysql_errno", mysqlErr.Number)
	}

	return builder
}

// isTransientSQLite reports whether a retry on the next call may succeed.
func isTransientSQLite(err sqlite3.Error) bool {
	switch err.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrProtocol:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err means the database (or a requested row) is absent.
func IsNotFound(err error) bool {
	return errors.IsCategory(err, errors.CategoryNotFound)
}

// IsSchemaError reports whether err means the database layout is unsupported.
func IsSchemaError(err error) bool {
	return errors.IsCategory(err, errors.CategorySchema)
}

// IsStorageError reports whether err is a lower-level access failure.
func IsStorageError(err error) bool {
	return errors.IsCategory(err, errors.CategoryDatabase)
}
