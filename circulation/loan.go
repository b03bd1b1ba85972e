package circulation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LoanStatus represents the lifecycle state of a Loan.
type LoanStatus string

const (
	// LoanStatusActive marks a loan whose book is still out with the user.
	LoanStatusActive LoanStatus = "active"

	// LoanStatusReturned marks a loan terminated by returning the book.
	LoanStatusReturned LoanStatus = "returned"

	// LoanStatusOverdue exists for external maintenance processes that promote
	// stale active loans. No operation in this module performs that transition;
	// overdue-ness is a derived property, see Loan.IsOverdue.
	LoanStatusOverdue LoanStatus = "overdue"
)

var (
	// ErrDueDateBeforeBorrowDate is returned when an explicit due date lies before the borrow date.
	ErrDueDateBeforeBorrowDate = errors.New("due date must not be before the borrow date")

	// ErrLoanNotActive is returned when a lifecycle operation is attempted on a loan that is not active.
	ErrLoanNotActive = errors.New("loan is not active")

	// ErrLoanAlreadyReturned is returned when a loan is returned a second time.
	ErrLoanAlreadyReturned = errors.New("loan is already returned")

	// ErrRenewalLimitReached is returned when a renewal is attempted beyond the loan's renewal budget.
	ErrRenewalLimitReached = errors.New("renewal limit reached")

	// ErrLoanNotFound is returned when a referenced loan does not exist.
	ErrLoanNotFound = errors.New("loan not found")
)

// Loan is a record of a book borrowed by a user for a bounded period.
//
// While its properties are exported for storage mapping, new loans should
// only be constructed with BuildLoan, and state transitions should only
// happen through Renewed and Returned, which keep the invariants:
// RenewedCount <= RenewableCount, ReturnedAt set iff Status is returned,
// and DueDate >= BorrowedAt.
type Loan struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	BookID         uuid.UUID
	BorrowedAt     time.Time
	DueDate        time.Time
	ReturnedAt     *time.Time
	Status         LoanStatus
	RenewableCount int
	RenewedCount   int
	Notes          string
	Metadata       map[string]string
}

// BuildLoan creates a new active Loan borrowed at the given time.
// A zero dueDate defaults to borrowedAt + LoanPeriod.
// Returns ErrDueDateBeforeBorrowDate if an explicit due date lies before borrowedAt.
func BuildLoan(id uuid.UUID, userID uuid.UUID, bookID uuid.UUID, borrowedAt time.Time, dueDate time.Time) (Loan, error) {
	if dueDate.IsZero() {
		dueDate = borrowedAt.Add(LoanPeriod)
	}

	if dueDate.Before(borrowedAt) {
		return Loan{}, ErrDueDateBeforeBorrowDate
	}

	loan := Loan{
		ID:             id,
		UserID:         userID,
		BookID:         bookID,
		BorrowedAt:     borrowedAt,
		DueDate:        dueDate,
		Status:         LoanStatusActive,
		RenewableCount: DefaultRenewableCount,
		RenewedCount:   0,
	}

	return loan, nil
}

// IsOverdue reports whether the loan is active and past its due date.
// It is derived on every read and never persisted, so it cannot go stale.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusActive && now.After(l.DueDate)
}

// DaysLeft returns the number of whole days until the due date while the
// loan is active, truncated and never negative, and 0 otherwise.
func (l Loan) DaysLeft(now time.Time) int {
	if l.Status != LoanStatusActive {
		return 0
	}

	return wholeDaysUntil(now, l.DueDate)
}

// CanRenew reports whether the loan is active and still has renewals left.
func (l Loan) CanRenew() bool {
	return l.RenewedCount < l.RenewableCount && l.Status == LoanStatusActive
}

// Renewed returns a copy of the loan with a fresh LoanPeriod granted from now.
// The new due date counts from the moment of renewal, not from the old due
// date, so a renewal can shorten or lengthen the remaining time depending on
// how much slack existed.
//
// Returns ErrLoanNotActive or ErrRenewalLimitReached without any mutation
// when the loan cannot be renewed.
func (l Loan) Renewed(now time.Time) (Loan, error) {
	if l.Status != LoanStatusActive {
		return Loan{}, ErrLoanNotActive
	}

	if l.RenewedCount >= l.RenewableCount {
		return Loan{}, ErrRenewalLimitReached
	}

	l.DueDate = now.Add(LoanPeriod)
	l.RenewedCount++

	return l, nil
}

// Returned returns a copy of the loan terminated at now.
// A loan that an external maintenance process promoted to overdue can still
// be returned; a second return yields ErrLoanAlreadyReturned.
func (l Loan) Returned(now time.Time) (Loan, error) {
	if l.Status == LoanStatusReturned {
		return Loan{}, ErrLoanAlreadyReturned
	}

	l.ReturnedAt = &now
	l.Status = LoanStatusReturned

	return l, nil
}
