// Package availability reconciles a book's copy counts and status against
// the outstanding loans and the reservation queue.
//
// Copy-count mutation is centralized here: both loan creation and book
// return go through the Coordinator instead of scattering partial updates
// over the engines. The Coordinator itself holds no state and applies the
// pure reconciliation functions of the circulation package within the
// caller's transaction.
package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// TxStorage defines the transaction-scoped storage operations needed by the Coordinator.
type TxStorage interface {
	GetBookInventoryForUpdate(ctx context.Context, bookID uuid.UUID) (circulation.BookInventory, error)
	UpdateBookInventory(ctx context.Context, inventory circulation.BookInventory) error
	HasReadyReservation(ctx context.Context, bookID uuid.UUID) (bool, error)
}

// Coordinator keeps Book status and available copies consistent with
// outstanding loans and reservations.
type Coordinator struct{}

// NewCoordinator creates a new Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// CopyCheckedOut takes one copy of the book off the shelf inside the
// caller's transaction. The inventory row lock it acquires also serializes
// all other mutations of the same book.
// Returns circulation.ErrNoCopiesAvailable when no copy is left.
func (c *Coordinator) CopyCheckedOut(ctx context.Context, tx TxStorage, bookID uuid.UUID) error {
	inventory, err := tx.GetBookInventoryForUpdate(ctx, bookID)
	if err != nil {
		return err
	}

	checkedOut, err := inventory.CheckedOut()
	if err != nil {
		return err
	}

	return tx.UpdateBookInventory(ctx, checkedOut)
}

// CopyReturned puts one copy of the book back on the shelf inside the
// caller's transaction, capped at the total, and recomputes the status:
// reserved while a ready reservation is waiting, borrowed while copies
// remain at zero, available otherwise.
func (c *Coordinator) CopyReturned(ctx context.Context, tx TxStorage, bookID uuid.UUID) error {
	inventory, err := tx.GetBookInventoryForUpdate(ctx, bookID)
	if err != nil {
		return err
	}

	readyWaiting, err := tx.HasReadyReservation(ctx, bookID)
	if err != nil {
		return err
	}

	return tx.UpdateBookInventory(ctx, inventory.CopyReturned(readyWaiting))
}

// Reconcile recomputes the book's status from its current copy counts and
// reservation queue state without changing any counts. It is used after
// queue transitions that can change whether a ready reservation is waiting.
func (c *Coordinator) Reconcile(ctx context.Context, tx TxStorage, bookID uuid.UUID) error {
	inventory, err := tx.GetBookInventoryForUpdate(ctx, bookID)
	if err != nil {
		return err
	}

	readyWaiting, err := tx.HasReadyReservation(ctx, bookID)
	if err != nil {
		return err
	}

	reconciled := inventory.Reconciled(readyWaiting)
	if reconciled == inventory {
		return nil
	}

	return tx.UpdateBookInventory(ctx, reconciled)
}
