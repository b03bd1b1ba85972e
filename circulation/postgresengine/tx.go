package postgresengine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine/internal/adapters"
)

// PostgreSQL error codes that signal a lost race against a concurrent
// transaction, mapped to circulation.ErrConcurrencyConflict so that the
// retry shell can transparently re-run the workflow.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
)

// WithinTx implements circulation.Storage.
//
// It starts one database transaction, hands a transaction-scoped
// circulation.TxStorage to fn, and commits when fn returns nil. Any error
// from fn rolls the transaction back and is returned unchanged, so domain
// errors keep their identity for errors.Is checks at the call sites.
func (cs CirculationStore) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, tx circulation.TxStorage) error,
) error {

	dbTx, beginErr := cs.db.BeginTx(ctx)
	if beginErr != nil {
		cs.logError(logMsgBeginTxFailed, beginErr)

		return errors.Join(circulation.ErrBeginningTxFailed, mapConcurrencyError(beginErr))
	}

	txs := &txStorage{store: cs, tx: dbTx}

	if fnErr := fn(ctx, txs); fnErr != nil {
		cs.rollback(ctx, dbTx)

		if errors.Is(fnErr, circulation.ErrConcurrencyConflict) {
			cs.logOperation(logMsgConcurrencyConflict)
		}

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		cs.logError(logMsgCommitTxFailed, commitErr)

		return errors.Join(circulation.ErrCommittingTxFailed, mapConcurrencyError(commitErr))
	}

	return nil
}

// rollback aborts the transaction and logs failures to do so.
func (cs CirculationStore) rollback(ctx context.Context, dbTx adapters.DBTx) {
	if rollbackErr := dbTx.Rollback(ctx); rollbackErr != nil {
		if cs.logger != nil {
			cs.logger.Warn(logMsgRollbackTxFailed, logAttrError, rollbackErr.Error())
		}
	}
}

// mapConcurrencyError attaches circulation.ErrConcurrencyConflict to errors
// whose SQLSTATE identifies a serialization failure, a deadlock, or an
// unavailable row lock. All other errors pass through unchanged.
func mapConcurrencyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isConcurrencyCode(pgErr.Code) {
			return errors.Join(circulation.ErrConcurrencyConflict, err)
		}

		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if isConcurrencyCode(string(pqErr.Code)) {
			return errors.Join(circulation.ErrConcurrencyConflict, err)
		}
	}

	return err
}

func isConcurrencyCode(code string) bool {
	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
		return true
	default:
		return false
	}
}

// txStorage implements circulation.TxStorage on top of one open database
// transaction by delegating to the store's runner-based query methods.
type txStorage struct {
	store CirculationStore
	tx    adapters.DBTx
}

func (t *txStorage) InsertLoan(ctx context.Context, loan circulation.Loan) error {
	return t.store.insertLoan(ctx, t.tx, loan)
}

func (t *txStorage) GetLoanForUpdate(ctx context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	return t.store.getLoan(ctx, t.tx, loanID, true)
}

func (t *txStorage) UpdateLoan(ctx context.Context, loan circulation.Loan) error {
	return t.store.updateLoan(ctx, t.tx, loan)
}

func (t *txStorage) InsertReservation(ctx context.Context, reservation circulation.Reservation) error {
	return t.store.insertReservation(ctx, t.tx, reservation)
}

func (t *txStorage) GetReservationForUpdate(ctx context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	return t.store.getReservation(ctx, t.tx, reservationID, true)
}

func (t *txStorage) UpdateReservation(ctx context.Context, reservation circulation.Reservation) error {
	return t.store.updateReservation(ctx, t.tx, reservation)
}

func (t *txStorage) UpdateQueuePositions(ctx context.Context, reservations []circulation.Reservation) error {
	return t.store.updateQueuePositions(ctx, t.tx, reservations)
}

func (t *txStorage) PendingReservations(ctx context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	return t.store.pendingReservations(ctx, t.tx, bookID)
}

func (t *txStorage) HasOpenReservation(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) (bool, error) {
	return t.store.hasOpenReservation(ctx, t.tx, userID, bookID)
}

func (t *txStorage) HasReadyReservation(ctx context.Context, bookID uuid.UUID) (bool, error) {
	return t.store.hasReadyReservation(ctx, t.tx, bookID)
}

func (t *txStorage) GetBookInventoryForUpdate(ctx context.Context, bookID uuid.UUID) (circulation.BookInventory, error) {
	return t.store.getBookInventory(ctx, t.tx, bookID, true)
}

func (t *txStorage) UpdateBookInventory(ctx context.Context, inventory circulation.BookInventory) error {
	return t.store.updateBookInventory(ctx, t.tx, inventory)
}
