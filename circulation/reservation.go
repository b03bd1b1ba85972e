package circulation

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus represents the lifecycle state of a Reservation.
type ReservationStatus string

const (
	// ReservationStatusPending marks a reservation waiting in the queue.
	ReservationStatusPending ReservationStatus = "pending"

	// ReservationStatusReady marks a reservation whose book is ready for pickup.
	ReservationStatusReady ReservationStatus = "ready"

	// ReservationStatusCancelled marks a reservation the user or staff cancelled.
	ReservationStatusCancelled ReservationStatus = "cancelled"

	// ReservationStatusExpired exists for external maintenance processes that
	// promote reservations whose pickup deadline passed. No operation in this
	// module performs that transition; expiry is derived, see Reservation.IsExpired.
	ReservationStatusExpired ReservationStatus = "expired"
)

var (
	// ErrDuplicateReservation is returned when a user already holds an open
	// (pending or ready) reservation for the same book.
	ErrDuplicateReservation = errors.New("user already has an open reservation for this book")

	// ErrDeadlineBeforeReservationDate is returned when an explicit pickup deadline lies before the reservation date.
	ErrDeadlineBeforeReservationDate = errors.New("pickup deadline must not be before the reservation date")

	// ErrReservationNotPending is returned when a transition requires a pending reservation.
	ErrReservationNotPending = errors.New("reservation is not pending")

	// ErrReservationAlreadyClosed is returned when a cancelled or expired reservation is cancelled again.
	ErrReservationAlreadyClosed = errors.New("reservation is already cancelled or expired")

	// ErrReservationNotFound is returned when a referenced reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")
)

// Reservation is a user's place in a per-book waiting queue.
//
// Among all pending reservations for one book, QueuePosition values form a
// contiguous sequence 1..N ordered by ReservedAt ascending. The sequence is
// restored by recomputing it over the whole pending set (RenumberPending)
// whenever a reservation leaves the pending state, never by patching
// individual counters.
type Reservation struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	BookID         uuid.UUID
	ReservedAt     time.Time
	PickupDeadline time.Time
	Status         ReservationStatus
	QueuePosition  QueuePositionInt
	Notes          string
	Metadata       map[string]string
}

// BuildReservation creates a new pending Reservation placed at queuePosition.
// A zero pickupDeadline defaults to reservedAt + PickupPeriod.
// Returns ErrDeadlineBeforeReservationDate if an explicit deadline lies before reservedAt.
func BuildReservation(
	id uuid.UUID,
	userID uuid.UUID,
	bookID uuid.UUID,
	reservedAt time.Time,
	pickupDeadline time.Time,
	queuePosition QueuePositionInt,
) (Reservation, error) {

	if pickupDeadline.IsZero() {
		pickupDeadline = reservedAt.Add(PickupPeriod)
	}

	if pickupDeadline.Before(reservedAt) {
		return Reservation{}, ErrDeadlineBeforeReservationDate
	}

	return Reservation{
		ID:             id,
		UserID:         userID,
		BookID:         bookID,
		ReservedAt:     reservedAt,
		PickupDeadline: pickupDeadline,
		Status:         ReservationStatusPending,
		QueuePosition:  queuePosition,
	}, nil
}

// IsOpen reports whether the reservation still occupies the user+book slot,
// i.e. it is pending or ready.
func (r Reservation) IsOpen() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusReady
}

// IsExpired reports whether the reservation is pending and past its pickup
// deadline. Derived on every read, never persisted.
func (r Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusPending && now.After(r.PickupDeadline)
}

// DaysUntilDeadline returns the number of whole days until the pickup
// deadline for pending and ready reservations, truncated and never negative,
// and 0 for closed reservations.
func (r Reservation) DaysUntilDeadline(now time.Time) int {
	if !r.IsOpen() {
		return 0
	}

	return wholeDaysUntil(now, r.PickupDeadline)
}

// MarkedReady returns a copy of the reservation promoted to ready.
// Only pending reservations can be promoted.
func (r Reservation) MarkedReady() (Reservation, error) {
	if r.Status != ReservationStatusPending {
		return Reservation{}, ErrReservationNotPending
	}

	r.Status = ReservationStatusReady

	return r, nil
}

// Cancelled returns a copy of the reservation transitioned to cancelled.
// Pending and ready reservations can be cancelled; cancelling an already
// closed reservation yields ErrReservationAlreadyClosed.
func (r Reservation) Cancelled() (Reservation, error) {
	if !r.IsOpen() {
		return Reservation{}, ErrReservationAlreadyClosed
	}

	r.Status = ReservationStatusCancelled

	return r, nil
}

// RenumberPending returns the given pending reservations ordered by
// ReservedAt ascending with QueuePosition reassigned to 1..N.
// The input slice is not modified.
//
// Reservations created in the same instant are ordered by ID to keep the
// result deterministic.
func RenumberPending(pending []Reservation) []Reservation {
	renumbered := make([]Reservation, len(pending))
	copy(renumbered, pending)

	sort.SliceStable(renumbered, func(i, j int) bool {
		if !renumbered[i].ReservedAt.Equal(renumbered[j].ReservedAt) {
			return renumbered[i].ReservedAt.Before(renumbered[j].ReservedAt)
		}

		return renumbered[i].ID.String() < renumbered[j].ID.String()
	})

	for idx := range renumbered {
		renumbered[idx].QueuePosition = idx + 1
	}

	return renumbered
}
