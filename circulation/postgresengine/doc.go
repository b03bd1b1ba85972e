// Package postgresengine provides a PostgreSQL implementation of the circulation storage contract.
//
// This package persists loans, reservations, and book inventories in PostgreSQL,
// supporting multiple database adapters (pgx, sql.DB, sqlx) with transactional
// operations and concurrency control based on row locks.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Transactional read-decide-write workflows via WithinTx
//   - Row-lock based serialization of one book's queue and copy mutations
//   - Serialization and deadlock failures surfaced as circulation.ErrConcurrencyConflict
//   - Configurable table names and logging
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewCirculationStoreFromPGXPool(db)
//
//	// With custom table names and logging
//	store, _ := postgresengine.NewCirculationStoreFromPGXPool(
//		db,
//		postgresengine.WithLoanTableName("my_loans"),
//		postgresengine.WithLogger(logger),
//	)
//
//	loan, _ := store.GetLoan(ctx, loanID)
//	err := store.WithinTx(ctx, func(ctx context.Context, tx circulation.TxStorage) error {
//		...
//	})
package postgresengine
