package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the persistence contract consumed by the engines.
//
// Every state-mutating operation runs inside WithinTx so that the guarded
// read-check-write sequences of the loan lifecycle and the reservation queue
// execute as one atomic transaction. Plain reads go through the top-level
// finder methods.
type Storage interface {
	// WithinTx runs fn inside one database transaction, committing when fn
	// returns nil and rolling back otherwise. Serialization and lock
	// conflicts surface as ErrConcurrencyConflict.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxStorage) error) error

	GetLoan(ctx context.Context, loanID uuid.UUID) (Loan, error)
	LoansOfUser(ctx context.Context, userID uuid.UUID) ([]Loan, error)
	OverdueLoansOfUser(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]Loan, error)

	GetReservation(ctx context.Context, reservationID uuid.UUID) (Reservation, error)
	ReservationsOfUser(ctx context.Context, userID uuid.UUID) ([]Reservation, error)
	ReadyForPickup(ctx context.Context, userID uuid.UUID) ([]Reservation, error)
	QueueForBook(ctx context.Context, bookID uuid.UUID) ([]Reservation, error)

	GetBookInventory(ctx context.Context, bookID uuid.UUID) (BookInventory, error)
}

// TxStorage is the transaction-scoped slice of the persistence contract.
//
// The ...ForUpdate methods take row locks. Locking the book inventory row
// serializes all mutations of one book's queue and copy counts, which closes
// the stale-count race on queue position assignment and the cancel/renumber
// interleavings.
type TxStorage interface {
	InsertLoan(ctx context.Context, loan Loan) error
	GetLoanForUpdate(ctx context.Context, loanID uuid.UUID) (Loan, error)
	UpdateLoan(ctx context.Context, loan Loan) error

	InsertReservation(ctx context.Context, reservation Reservation) error
	GetReservationForUpdate(ctx context.Context, reservationID uuid.UUID) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation) error
	UpdateQueuePositions(ctx context.Context, reservations []Reservation) error
	PendingReservations(ctx context.Context, bookID uuid.UUID) ([]Reservation, error)
	HasOpenReservation(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) (bool, error)
	HasReadyReservation(ctx context.Context, bookID uuid.UUID) (bool, error)

	GetBookInventoryForUpdate(ctx context.Context, bookID uuid.UUID) (BookInventory, error)
	UpdateBookInventory(ctx context.Context, inventory BookInventory) error
}
