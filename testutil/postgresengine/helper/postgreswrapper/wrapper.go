package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/testutil/postgresengine/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper interface to abstract over different engine types
type Wrapper interface {
	GetCirculationStore() postgresengine.CirculationStore
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store postgresengine.CirculationStore
}

func (e *PGXPoolWrapper) GetCirculationStore() postgresengine.CirculationStore {
	return e.store
}

func (e *PGXPoolWrapper) Close() {
	e.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db    *sql.DB
	store postgresengine.CirculationStore
}

func (e *SQLDBWrapper) GetCirculationStore() postgresengine.CirculationStore {
	return e.store
}

func (e *SQLDBWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db    *sqlx.DB
	store postgresengine.CirculationStore
}

func (e *SQLXWrapper) GetCirculationStore() postgresengine.CirculationStore {
	return e.store
}

func (e *SQLXWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the environment variable
func CreateWrapperWithTestConfig(t testing.TB) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		store, err := postgresengine.NewCirculationStoreFromPGXPool(connPool)
		assert.NoError(t, err, "error creating circulation store")

		return &PGXPoolWrapper{pool: connPool, store: store}

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()

		store, err := postgresengine.NewCirculationStoreFromSQLDB(db)
		assert.NoError(t, err, "error creating circulation store")

		return &SQLDBWrapper{db: db, store: store}

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()

		store, err := postgresengine.NewCirculationStoreFromSQLX(db)
		assert.NoError(t, err, "error creating circulation store")

		return &SQLXWrapper{db: db, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// TryCreateStoreWithOptions tries to create a circulation store with the given options
// and returns the error (for testing error cases)
func TryCreateStoreWithOptions(t testing.TB, options ...postgresengine.Option) error {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		defer connPool.Close()

		_, err = postgresengine.NewCirculationStoreFromPGXPool(connPool, options...)
		return err

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()
		defer func(db *sql.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewCirculationStoreFromSQLDB(db, options...)
		return err

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()
		defer func(db *sqlx.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewCirculationStoreFromSQLX(db, options...)
		return err

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// CreateTables creates the circulation tables used by the tests if they do not exist yet
func CreateTables(t testing.TB, wrapper Wrapper) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS loans (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			book_id UUID NOT NULL,
			borrowed_at TIMESTAMPTZ NOT NULL,
			due_date TIMESTAMPTZ NOT NULL,
			returned_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			renewable_count INT NOT NULL,
			renewed_count INT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user_borrowed_at ON loans (user_id, borrowed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			book_id UUID NOT NULL,
			reserved_at TIMESTAMPTZ NOT NULL,
			pickup_deadline TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			queue_position INT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_book_status ON reservations (book_id, status, queue_position)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations (user_id, reserved_at DESC)`,
		`CREATE TABLE IF NOT EXISTS book_inventories (
			book_id UUID PRIMARY KEY,
			total_copies INT NOT NULL,
			available_copies INT NOT NULL,
			status TEXT NOT NULL
		)`,
	}

	for _, statement := range statements {
		execOnWrapper(t, wrapper, statement, "error creating circulation tables")
	}
}

// CleanUp cleans up the circulation tables for the given wrapper
func CleanUp(t testing.TB, wrapper Wrapper) {
	execOnWrapper(t, wrapper, "TRUNCATE TABLE loans", "error cleaning up the loans table")
	execOnWrapper(t, wrapper, "TRUNCATE TABLE reservations", "error cleaning up the reservations table")
	execOnWrapper(t, wrapper, "TRUNCATE TABLE book_inventories", "error cleaning up the book_inventories table")
}

// InsertBookInventory seeds one book inventory row for test arrangement
func InsertBookInventory(t testing.TB, wrapper Wrapper, bookID string, totalCopies int, availableCopies int, status string) {
	query := fmt.Sprintf(
		`INSERT INTO book_inventories (book_id, total_copies, available_copies, status) VALUES ('%s', %d, %d, '%s')`,
		bookID, totalCopies, availableCopies, status,
	)

	execOnWrapper(t, wrapper, query, "error seeding book inventory")
}

func execOnWrapper(t testing.TB, wrapper Wrapper, query string, errMsg string) {
	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := e.pool.Exec(context.Background(), query)
		assert.NoError(t, err, errMsg)

	case *SQLDBWrapper:
		_, err := e.db.Exec(query)
		assert.NoError(t, err, errMsg)

	case *SQLXWrapper:
		_, err := e.db.Exec(query)
		assert.NoError(t, err, errMsg)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}
}
