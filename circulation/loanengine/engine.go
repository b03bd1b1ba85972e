package loanengine

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/availability"
	"github.com/AntonStoeckl/library-circulation-go/circulation/shell"
)

// Engine orchestrates the loan lifecycle against the storage contract.
// It keeps the business rules in the pure circulation types and limits
// itself to the transactional read-decide-write workflow.
type Engine struct {
	storage      circulation.Storage
	coordinator  *availability.Coordinator
	clock        circulation.Clock
	retryOptions []shell.RetryOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithClock sets the clock used for all deadline math.
func WithClock(clock circulation.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRetryOptions sets a custom retry configuration for conflicting transactions.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(e *Engine) {
		e.retryOptions = opts
	}
}

// NewEngine creates a new Engine with optional configuration.
// The clock defaults to the system clock.
func NewEngine(storage circulation.Storage, options ...Option) *Engine {
	engine := &Engine{
		storage:     storage,
		coordinator: availability.NewCoordinator(),
		clock:       circulation.SystemClock(),
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// CreateLoan creates a new active loan and takes one copy of the book off
// the shelf through the availability coordinator, both within one
// transaction. A zero due date in the command defaults to now + LoanPeriod.
//
// Returns circulation.ErrNoCopiesAvailable when the book has no copy left
// and circulation.ErrBookNotFound when the book is unknown.
func (e *Engine) CreateLoan(ctx context.Context, command CreateLoanCommand) (circulation.Loan, error) {
	loan, err := circulation.BuildLoan(command.LoanID, command.UserID, command.BookID, e.clock.Now(), command.DueDate)
	if err != nil {
		return circulation.Loan{}, err
	}

	loan.Notes = command.Notes
	loan.Metadata = command.Metadata

	err = shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return e.storage.WithinTx(retryCtx, func(txCtx context.Context, tx circulation.TxStorage) error {
			if checkoutErr := e.coordinator.CopyCheckedOut(txCtx, tx, command.BookID); checkoutErr != nil {
				return checkoutErr
			}

			return tx.InsertLoan(txCtx, loan)
		})
	}, e.retryOptions...)

	if err != nil {
		return circulation.Loan{}, err
	}

	return loan, nil
}

// Renew grants the loan a fresh loan period counted from now and increments
// its renewal counter, atomically. Policy failures leave the loan untouched:
// circulation.ErrRenewalLimitReached when the budget is exhausted and
// circulation.ErrLoanNotActive when the loan is not active.
func (e *Engine) Renew(ctx context.Context, command RenewLoanCommand) (circulation.Loan, error) {
	var renewed circulation.Loan

	err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return e.storage.WithinTx(retryCtx, func(txCtx context.Context, tx circulation.TxStorage) error {
			loan, txErr := tx.GetLoanForUpdate(txCtx, command.LoanID)
			if txErr != nil {
				return txErr
			}

			renewed, txErr = loan.Renewed(e.clock.Now())
			if txErr != nil {
				return txErr
			}

			return tx.UpdateLoan(txCtx, renewed)
		})
	}, e.retryOptions...)

	if err != nil {
		return circulation.Loan{}, err
	}

	return renewed, nil
}

// ReturnBook terminates the loan, records the return time, and puts the
// copy back on the shelf through the availability coordinator, all within
// one transaction. Returning an already-returned loan yields
// circulation.ErrLoanAlreadyReturned.
func (e *Engine) ReturnBook(ctx context.Context, command ReturnBookCommand) (circulation.Loan, error) {
	var returned circulation.Loan

	err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return e.storage.WithinTx(retryCtx, func(txCtx context.Context, tx circulation.TxStorage) error {
			loan, txErr := tx.GetLoanForUpdate(txCtx, command.LoanID)
			if txErr != nil {
				return txErr
			}

			returned, txErr = loan.Returned(e.clock.Now())
			if txErr != nil {
				return txErr
			}

			if txErr = tx.UpdateLoan(txCtx, returned); txErr != nil {
				return txErr
			}

			return e.coordinator.CopyReturned(txCtx, tx, loan.BookID)
		})
	}, e.retryOptions...)

	if err != nil {
		return circulation.Loan{}, err
	}

	return returned, nil
}

// GetLoan returns the loan with the given ID.
func (e *Engine) GetLoan(ctx context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	return e.storage.GetLoan(ctx, loanID)
}

// IsOverdue reports whether the loan is active and past its due date.
func (e *Engine) IsOverdue(ctx context.Context, loanID uuid.UUID) (bool, error) {
	loan, err := e.storage.GetLoan(ctx, loanID)
	if err != nil {
		return false, err
	}

	return loan.IsOverdue(e.clock.Now()), nil
}

// DaysLeft returns the number of whole days until the loan's due date.
func (e *Engine) DaysLeft(ctx context.Context, loanID uuid.UUID) (int, error) {
	loan, err := e.storage.GetLoan(ctx, loanID)
	if err != nil {
		return 0, err
	}

	return loan.DaysLeft(e.clock.Now()), nil
}

// CanRenew reports whether the loan is active and still has renewals left.
func (e *Engine) CanRenew(ctx context.Context, loanID uuid.UUID) (bool, error) {
	loan, err := e.storage.GetLoan(ctx, loanID)
	if err != nil {
		return false, err
	}

	return loan.CanRenew(), nil
}

// LoansOfUser returns all loans of the user, most recently borrowed first.
func (e *Engine) LoansOfUser(ctx context.Context, userID uuid.UUID) ([]circulation.Loan, error) {
	return e.storage.LoansOfUser(ctx, userID)
}

// OverdueLoansOfUser returns the user's active loans whose due date has
// passed, ordered by due date ascending.
func (e *Engine) OverdueLoansOfUser(ctx context.Context, userID uuid.UUID) ([]circulation.Loan, error) {
	return e.storage.OverdueLoansOfUser(ctx, userID, e.clock.Now())
}
