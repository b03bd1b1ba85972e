package reservationengine

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/availability"
	"github.com/AntonStoeckl/library-circulation-go/circulation/shell"
)

// Engine orchestrates the reservation queue against the storage contract.
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

// CreateReservation places the user at the tail of the book's waiting queue.
// The queue position is the count of pending reservations plus one, read
// under the book's inventory row lock so that concurrent reservations for
// the same book cannot claim the same position. A zero pickup deadline in
// the command defaults to now + PickupPeriod.
//
// Returns circulation.ErrDuplicateReservation when the user already holds
// an open reservation for the book and circulation.ErrBookNotFound when the
// book is unknown.
func (e *Engine) CreateReservation(ctx context.Context, command CreateReservationCommand) (circulation.Reservation, error) {
	var reservation circulation.Reservation

	err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return e.storage.WithinTx(retryCtx, func(txCtx context.Context, tx circulation.TxStorage) error {
			if _, txErr := tx.GetBookInventoryForUpdate(txCtx, command.BookID); txErr != nil {
				return txErr
			}

			hasOpen, txErr := tx.HasOpenReservation(txCtx, command.UserID, command.BookID)
			if txErr != nil {
				return txErr
			}

			if hasOpen {
				return circulation.ErrDuplicateReservation
			}

			pending, txErr := tx.PendingReservations(txCtx, command.BookID)
			if txErr != nil {
				return txErr
			}

			reservation, txErr = circulation.BuildReservation(
				command.ReservationID,
				command.UserID,
				command.BookID,
				e.clock.Now(),
				command.PickupDeadline,
				len(pending)+1,
			)
			if txErr != nil {
				return txErr
			}

			reservation.Notes = command.Notes
			reservation.Metadata = command.Metadata

			return tx.InsertReservation(txCtx, reservation)
		})
	}, e.retryOptions...)

	if err != nil {
		return circulation.Reservation{}, err
	}

	return reservation, nil
}

// MarkAsReady promotes a pending reservation to ready for pickup, renumbers
// the remaining pending queue, and reconciles the book's status, all within
// one transaction. Only pending reservations can be promoted; anything else
// yields circulation.ErrReservationNotPending.
func (e *Engine) MarkAsReady(ctx context.Context, command MarkReservationReadyCommand) (circulation.Reservation, error) {
	var ready circulation.Reservation

	err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return e.storage.WithinTx(retryCtx, func(txCtx context.Context, tx circulation.TxStorage) error {
			reservation, txErr := tx.GetReservationForUpdate(txCtx, command.ReservationID)
			if txErr != nil {
				return txErr
			}

			if _, txErr = tx.GetBookInventoryForUpdate(txCtx, reservation.BookID); txErr != nil {
				return txErr
			}

			ready, txErr = reservation.MarkedReady()
			if txErr != nil {
				return txErr
			}

			if txErr = tx.UpdateReservation(txCtx, ready); txErr != nil {
				return txErr
			}

			if txErr = renumberQueue(txCtx, tx, reservation.BookID); txErr != nil {
				return txErr
			}

			return e.coordinator.Reconcile(txCtx, tx, reservation.BookID)
		})
	}, e.retryOptions...)

	if err != nil {
		return circulation.Reservation{}, err
	}

	return ready, nil
}

// Cancel transitions an open reservation to cancelled, renumbers the
// remaining pending queue, and reconciles the book's status, all within one
// transaction. Pending and ready reservations can be cancelled; cancelling
// a closed one yields circulation.ErrReservationAlreadyClosed.
func (e *Engine) Cancel(ctx context.Context, command CancelReservationCommand) (circulation.Reservation, error) {
	var cancelled circulation.Reservation

	err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return e.storage.WithinTx(retryCtx, func(txCtx context.Context, tx circulation.TxStorage) error {
			reservation, txErr := tx.GetReservationForUpdate(txCtx, command.ReservationID)
			if txErr != nil {
				return txErr
			}

			if _, txErr = tx.GetBookInventoryForUpdate(txCtx, reservation.BookID); txErr != nil {
				return txErr
			}

			cancelled, txErr = reservation.Cancelled()
			if txErr != nil {
				return txErr
			}

			if txErr = tx.UpdateReservation(txCtx, cancelled); txErr != nil {
				return txErr
			}

			if txErr = renumberQueue(txCtx, tx, reservation.BookID); txErr != nil {
				return txErr
			}

			return e.coordinator.Reconcile(txCtx, tx, reservation.BookID)
		})
	}, e.retryOptions...)

	if err != nil {
		return circulation.Reservation{}, err
	}

	return cancelled, nil
}

// GetReservation returns the reservation with the given ID.
func (e *Engine) GetReservation(ctx context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	return e.storage.GetReservation(ctx, reservationID)
}

// IsExpired reports whether the reservation is pending and past its pickup deadline.
func (e *Engine) IsExpired(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	reservation, err := e.storage.GetReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}

	return reservation.IsExpired(e.clock.Now()), nil
}

// DaysUntilDeadline returns the number of whole days until the reservation's
// pickup deadline.
func (e *Engine) DaysUntilDeadline(ctx context.Context, reservationID uuid.UUID) (int, error) {
	reservation, err := e.storage.GetReservation(ctx, reservationID)
	if err != nil {
		return 0, err
	}

	return reservation.DaysUntilDeadline(e.clock.Now()), nil
}

// ReservationsOfUser returns all reservations of the user, most recently
// reserved first.
func (e *Engine) ReservationsOfUser(ctx context.Context, userID uuid.UUID) ([]circulation.Reservation, error) {
	return e.storage.ReservationsOfUser(ctx, userID)
}

// ReadyForPickup returns the user's ready reservations ordered by pickup
// deadline ascending.
func (e *Engine) ReadyForPickup(ctx context.Context, userID uuid.UUID) ([]circulation.Reservation, error) {
	return e.storage.ReadyForPickup(ctx, userID)
}

// QueueForBook returns the book's pending reservations ordered by queue position.
func (e *Engine) QueueForBook(ctx context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	return e.storage.QueueForBook(ctx, bookID)
}

// renumberQueue recomputes the contiguous 1..N positions over the book's
// pending reservations and persists only the rows whose position changed.
func renumberQueue(ctx context.Context, tx circulation.TxStorage, bookID uuid.UUID) error {
	pending, err := tx.PendingReservations(ctx, bookID)
	if err != nil {
		return err
	}

	positionByID := make(map[uuid.UUID]circulation.QueuePositionInt, len(pending))
	for _, reservation := range pending {
		positionByID[reservation.ID] = reservation.QueuePosition
	}

	var changed []circulation.Reservation

	for _, reservation := range circulation.RenumberPending(pending) {
		if positionByID[reservation.ID] != reservation.QueuePosition {
			changed = append(changed, reservation)
		}
	}

	if len(changed) == 0 {
		return nil
	}

	return tx.UpdateQueuePositions(ctx, changed)
}
