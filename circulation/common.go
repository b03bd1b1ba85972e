package circulation

import (
	"errors"
)

var (
	// ErrNilDatabaseConnection is returned when a storage implementation is constructed without a database connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableNameSupplied is returned when an empty table name is supplied to a storage option.
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

	// ErrConcurrencyConflict is returned when a transaction loses a serialization or lock conflict
	// against a concurrent mutation of the same book's loans or reservation queue.
	// It is the only error the retry helper in the shell package will retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict detected")

	// ErrBuildingQueryFailed is returned when building an SQL query failed.
	ErrBuildingQueryFailed = errors.New("building sql query failed")

	// ErrQueryingFailed is returned when executing an SQL query failed.
	ErrQueryingFailed = errors.New("querying the database failed")

	// ErrExecutingStatementFailed is returned when executing an SQL statement failed.
	ErrExecutingStatementFailed = errors.New("executing sql statement failed")

	// ErrScanningDBRowFailed is returned when scanning a database row failed.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")

	// ErrGettingRowsAffectedFailed is returned when reading the affected row count failed.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")

	// ErrBeginningTxFailed is returned when starting a database transaction failed.
	ErrBeginningTxFailed = errors.New("beginning database transaction failed")

	// ErrCommittingTxFailed is returned when committing a database transaction failed.
	ErrCommittingTxFailed = errors.New("committing database transaction failed")
)

// QueuePositionInt is a type alias for int, representing a 1-based position in a book's reservation queue.
type QueuePositionInt = int
