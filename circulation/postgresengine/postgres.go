package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	defaultLoanTableName        = "loans"
	defaultReservationTableName = "reservations"
	defaultBookTableName        = "book_inventories"

	logMsgBuildQueryFailed      = "failed to build sql query"
	logMsgDBQueryFailed         = "database query execution failed"
	logMsgDBExecFailed          = "database statement execution failed"
	logMsgCloseRowsFailed       = "failed to close database rows"
	logMsgScanRowFailed         = "failed to scan database row"
	logMsgRowsAffectedFailed    = "failed to get rows affected count"
	logMsgMarshalMetadataFailed = "failed to marshal metadata"
	logMsgBeginTxFailed         = "failed to begin database transaction"
	logMsgRollbackTxFailed      = "failed to roll back database transaction"
	logMsgCommitTxFailed        = "failed to commit database transaction"
	logMsgConcurrencyConflict   = "concurrency conflict detected"
	logMsgSQLExecuted           = "executed sql"
	logMsgLoanInserted          = "loan inserted"
	logMsgLoanUpdated           = "loan updated"
	logMsgReservationInserted   = "reservation inserted"
	logMsgReservationUpdated    = "reservation updated"
	logMsgQueueRenumbered       = "queue positions updated"
	logMsgInventoryUpdated      = "book inventory updated"
	logMsgOperation             = "circulation store operation: "

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrDurationMS   = "duration_ms"
	logAttrRowsAffected = "rows_affected"
	logAttrLoanID       = "loan_id"
	logAttrRsvID        = "reservation_id"
	logAttrBookID       = "book_id"

	colID              = "id"
	colUserID          = "user_id"
	colBookID          = "book_id"
	colBorrowedAt      = "borrowed_at"
	colDueDate         = "due_date"
	colReturnedAt      = "returned_at"
	colReservedAt      = "reserved_at"
	colPickupDeadline  = "pickup_deadline"
	colStatus          = "status"
	colQueuePosition   = "queue_position"
	colRenewableCount  = "renewable_count"
	colRenewedCount    = "renewed_count"
	colNotes           = "notes"
	colMetadata        = "metadata"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"

	dialectPostgres = "postgres"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// CirculationStore persists loans, reservations, and book inventories in PostgreSQL.
// It leverages a database adapter and supports customizable logging and table configuration.
//
// CirculationStore implements circulation.Storage; the transaction-scoped
// circulation.TxStorage contract is implemented by the handle passed to the
// WithinTx callback.
type CirculationStore struct {
	db                   adapters.DBAdapter
	loanTableName        string
	reservationTableName string
	bookTableName        string
	logger               Logger
}

// NewCirculationStoreFromPGXPool creates a new CirculationStore using a pgx Pool with optional configuration.
func NewCirculationStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (CirculationStore, error) {
	if db == nil {
		return CirculationStore{}, circulation.ErrNilDatabaseConnection
	}

	return newCirculationStore(adapters.NewPGXAdapter(db), options...)
}

// NewCirculationStoreFromSQLDB creates a new CirculationStore using a sql.DB with optional configuration.
func NewCirculationStoreFromSQLDB(db *sql.DB, options ...Option) (CirculationStore, error) {
	if db == nil {
		return CirculationStore{}, circulation.ErrNilDatabaseConnection
	}

	return newCirculationStore(adapters.NewSQLAdapter(db), options...)
}

// NewCirculationStoreFromSQLX creates a new CirculationStore using a sqlx.DB with optional configuration.
func NewCirculationStoreFromSQLX(db *sqlx.DB, options ...Option) (CirculationStore, error) {
	if db == nil {
		return CirculationStore{}, circulation.ErrNilDatabaseConnection
	}

	return newCirculationStore(adapters.NewSQLXAdapter(db), options...)
}

func newCirculationStore(db adapters.DBAdapter, options ...Option) (CirculationStore, error) {
	cs := CirculationStore{
		db:                   db,
		loanTableName:        defaultLoanTableName,
		reservationTableName: defaultReservationTableName,
		bookTableName:        defaultBookTableName,
	}

	for _, option := range options {
		if err := option(&cs); err != nil {
			return CirculationStore{}, err
		}
	}

	return cs, nil
}

// dbRunner is the query execution surface shared by the adapter and its transactions.
type dbRunner interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
	Exec(ctx context.Context, query string) (adapters.DBResult, error)
}

// executeQuery executes the SQL query on the given runner and returns rows with timing information.
func (cs CirculationStore) executeQuery(ctx context.Context, runner dbRunner, sqlQuery string) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := runner.Query(ctx, sqlQuery)
	duration := time.Since(start)
	cs.logQueryWithDuration(sqlQuery, duration)

	if queryErr != nil {
		cs.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, duration, errors.Join(circulation.ErrQueryingFailed, mapConcurrencyError(queryErr))
	}

	return rows, duration, nil
}

// executeStatement executes the SQL statement on the given runner and returns rows affected with timing information.
func (cs CirculationStore) executeStatement(ctx context.Context, runner dbRunner, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	result, execErr := runner.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	cs.logQueryWithDuration(sqlQuery, duration)

	if execErr != nil {
		cs.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return 0, duration, errors.Join(circulation.ErrExecutingStatementFailed, mapConcurrencyError(execErr))
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		cs.logError(logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, duration, errors.Join(circulation.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (cs CirculationStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if cs.logger != nil {
			cs.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (cs CirculationStore) logQueryWithDuration(sqlQuery string, duration time.Duration) {
	if cs.logger != nil {
		cs.logger.Debug(logMsgSQLExecuted, logAttrDurationMS, cs.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (cs CirculationStore) logOperation(action string, args ...any) {
	if cs.logger != nil {
		cs.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (cs CirculationStore) logError(message string, err error, args ...any) {
	if cs.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		cs.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (cs CirculationStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// jsonMarshaler is used for the metadata JSONB columns.
var jsonMarshaler = jsoniter.ConfigCompatibleWithStandardLibrary

// marshalMetadata serializes the metadata map for the JSONB column.
// Empty and nil maps are stored as an empty JSON object.
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}

	return jsonMarshaler.Marshal(metadata)
}

// unmarshalMetadata deserializes the JSONB column into a metadata map.
// An empty JSON object comes back as a nil map.
func unmarshalMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var metadata map[string]string
	if err := jsonMarshaler.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}

	if len(metadata) == 0 {
		return nil, nil
	}

	return metadata, nil
}
