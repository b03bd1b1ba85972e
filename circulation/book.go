package circulation

import (
	"errors"

	"github.com/google/uuid"
)

// BookStatus represents the circulation state of a book.
type BookStatus string

const (
	// BookStatusAvailable marks a book with at least one copy on the shelf.
	BookStatusAvailable BookStatus = "available"

	// BookStatusBorrowed marks a book with all copies out on loan.
	BookStatusBorrowed BookStatus = "borrowed"

	// BookStatusReserved marks a book held for a ready reservation.
	BookStatusReserved BookStatus = "reserved"

	// BookStatusMaintenance marks a book withdrawn from circulation by staff.
	// Maintenance is sticky: availability reconciliation never overwrites it.
	BookStatusMaintenance BookStatus = "maintenance"
)

var (
	// ErrBookNotFound is returned when a referenced book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrNoCopiesAvailable is returned when a loan is created for a book with no copies on the shelf.
	ErrNoCopiesAvailable = errors.New("no copies available")
)

// BookInventory is the circulation view of a book: copy counts and status.
// The book entity itself (title, author, ...) is owned externally and only
// referenced by ID. Invariant: 0 <= AvailableCopies <= TotalCopies.
type BookInventory struct {
	BookID          uuid.UUID
	TotalCopies     int
	AvailableCopies int
	Status          BookStatus
}

// CheckedOut returns a copy of the inventory with one copy taken off the
// shelf. When the last copy goes out, the status becomes borrowed.
// Returns ErrNoCopiesAvailable without mutation when no copy is left.
func (b BookInventory) CheckedOut() (BookInventory, error) {
	if b.AvailableCopies <= 0 {
		return BookInventory{}, ErrNoCopiesAvailable
	}

	b.AvailableCopies--

	if b.AvailableCopies == 0 && b.Status != BookStatusMaintenance {
		b.Status = BookStatusBorrowed
	}

	return b, nil
}

// CopyReturned returns a copy of the inventory with one copy put back on the
// shelf, capped at TotalCopies, and the status reconciled against the given
// reservation state.
func (b BookInventory) CopyReturned(readyReservationWaiting bool) BookInventory {
	if b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}

	return b.Reconciled(readyReservationWaiting)
}

// Reconciled recomputes the status from the copy counts and the reservation
// queue state, in that order of precedence: borrowed while no copies remain,
// even when a ready reservation is waiting; otherwise reserved while a ready
// reservation is waiting; available in all other cases. A ready reservation
// only holds the book once a copy is physically back on the shelf.
// Maintenance is never overwritten.
func (b BookInventory) Reconciled(readyReservationWaiting bool) BookInventory {
	if b.Status == BookStatusMaintenance {
		return b
	}

	switch {
	case b.AvailableCopies == 0:
		b.Status = BookStatusBorrowed
	case readyReservationWaiting:
		b.Status = BookStatusReserved
	default:
		b.Status = BookStatusAvailable
	}

	return b
}
