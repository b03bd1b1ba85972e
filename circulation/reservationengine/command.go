package reservationengine

import (
	"time"

	"github.com/google/uuid"
)

const (
	createReservationCommandType    = "CreateReservation"
	markReservationReadyCommandType = "MarkReservationReady"
	cancelReservationCommandType    = "CancelReservation"
)

// CreateReservationCommand represents the intent to place a user in a
// book's waiting queue.
// A zero PickupDeadline defaults to the reservation date plus the pickup period.
type CreateReservationCommand struct {
	ReservationID  uuid.UUID
	UserID         uuid.UUID
	BookID         uuid.UUID
	PickupDeadline time.Time
	Notes          string
	Metadata       map[string]string
}

// CommandType returns the type identifier for this command.
func (c CreateReservationCommand) CommandType() string {
	return createReservationCommandType
}

// BuildCreateReservationCommand creates a new CreateReservationCommand with
// a fresh reservation ID.
func BuildCreateReservationCommand(userID uuid.UUID, bookID uuid.UUID, pickupDeadline time.Time) CreateReservationCommand {
	return CreateReservationCommand{
		ReservationID:  uuid.New(),
		UserID:         userID,
		BookID:         bookID,
		PickupDeadline: pickupDeadline,
	}
}

// MarkReservationReadyCommand represents the intent to promote a pending
// reservation to ready for pickup.
type MarkReservationReadyCommand struct {
	ReservationID uuid.UUID
}

// CommandType returns the type identifier for this command.
func (c MarkReservationReadyCommand) CommandType() string {
	return markReservationReadyCommandType
}

// BuildMarkReservationReadyCommand creates a new MarkReservationReadyCommand.
func BuildMarkReservationReadyCommand(reservationID uuid.UUID) MarkReservationReadyCommand {
	return MarkReservationReadyCommand{ReservationID: reservationID}
}

// CancelReservationCommand represents the intent to cancel an open reservation.
type CancelReservationCommand struct {
	ReservationID uuid.UUID
}

// CommandType returns the type identifier for this command.
func (c CancelReservationCommand) CommandType() string {
	return cancelReservationCommandType
}

// BuildCancelReservationCommand creates a new CancelReservationCommand.
func BuildCancelReservationCommand(reservationID uuid.UUID) CancelReservationCommand {
	return CancelReservationCommand{ReservationID: reservationID}
}
