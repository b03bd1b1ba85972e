package circulation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// FakeStorage is an in-memory circulation.Storage for engine tests.
//
// WithinTx runs the callback on a copy of the state and only commits the
// copy when the callback returns nil, so rollback semantics match the real
// database engine. A configurable number of concurrency conflicts can be
// injected to exercise the retry shell.
type FakeStorage struct {
	mu           sync.Mutex
	loans        map[uuid.UUID]circulation.Loan
	reservations map[uuid.UUID]circulation.Reservation
	books        map[uuid.UUID]circulation.BookInventory

	conflictsLeft int
}

// NewFakeStorage creates an empty FakeStorage.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		loans:        make(map[uuid.UUID]circulation.Loan),
		reservations: make(map[uuid.UUID]circulation.Reservation),
		books:        make(map[uuid.UUID]circulation.BookInventory),
	}
}

// InjectConflicts makes the next n calls to WithinTx fail with
// circulation.ErrConcurrencyConflict before any callback runs.
func (s *FakeStorage) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conflictsLeft = n
}

// SeedBook stores the given book inventory.
func (s *FakeStorage) SeedBook(inventory circulation.BookInventory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books[inventory.BookID] = inventory
}

// SeedLoan stores the given loan.
func (s *FakeStorage) SeedLoan(loan circulation.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loans[loan.ID] = loan
}

// SeedReservation stores the given reservation.
func (s *FakeStorage) SeedReservation(reservation circulation.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reservations[reservation.ID] = reservation
}

// WithinTx implements circulation.Storage.
func (s *FakeStorage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx circulation.TxStorage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictsLeft > 0 {
		s.conflictsLeft--

		return circulation.ErrConcurrencyConflict
	}

	tx := &fakeTx{
		loans:        cloneMap(s.loans),
		reservations: cloneMap(s.reservations),
		books:        cloneMap(s.books),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.loans = tx.loans
	s.reservations = tx.reservations
	s.books = tx.books

	return nil
}

// GetLoan implements circulation.Storage.
func (s *FakeStorage) GetLoan(_ context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, found := s.loans[loanID]
	if !found {
		return circulation.Loan{}, circulation.ErrLoanNotFound
	}

	return loan, nil
}

// LoansOfUser implements circulation.Storage.
func (s *FakeStorage) LoansOfUser(_ context.Context, userID uuid.UUID) ([]circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var loans []circulation.Loan

	for _, loan := range s.loans {
		if loan.UserID == userID {
			loans = append(loans, loan)
		}
	}

	sort.Slice(loans, func(i, j int) bool {
		return loans[i].BorrowedAt.After(loans[j].BorrowedAt)
	})

	return loans, nil
}

// OverdueLoansOfUser implements circulation.Storage.
func (s *FakeStorage) OverdueLoansOfUser(_ context.Context, userID uuid.UUID, asOf time.Time) ([]circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var loans []circulation.Loan

	for _, loan := range s.loans {
		if loan.UserID == userID && loan.Status == circulation.LoanStatusActive && asOf.After(loan.DueDate) {
			loans = append(loans, loan)
		}
	}

	sort.Slice(loans, func(i, j int) bool {
		return loans[i].DueDate.Before(loans[j].DueDate)
	})

	return loans, nil
}

// GetReservation implements circulation.Storage.
func (s *FakeStorage) GetReservation(_ context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, found := s.reservations[reservationID]
	if !found {
		return circulation.Reservation{}, circulation.ErrReservationNotFound
	}

	return reservation, nil
}

// ReservationsOfUser implements circulation.Storage.
func (s *FakeStorage) ReservationsOfUser(_ context.Context, userID uuid.UUID) ([]circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reservations []circulation.Reservation

	for _, reservation := range s.reservations {
		if reservation.UserID == userID {
			reservations = append(reservations, reservation)
		}
	}

	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].ReservedAt.After(reservations[j].ReservedAt)
	})

	return reservations, nil
}

// ReadyForPickup implements circulation.Storage.
func (s *FakeStorage) ReadyForPickup(_ context.Context, userID uuid.UUID) ([]circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reservations []circulation.Reservation

	for _, reservation := range s.reservations {
		if reservation.UserID == userID && reservation.Status == circulation.ReservationStatusReady {
			reservations = append(reservations, reservation)
		}
	}

	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].PickupDeadline.Before(reservations[j].PickupDeadline)
	})

	return reservations, nil
}

// QueueForBook implements circulation.Storage.
func (s *FakeStorage) QueueForBook(_ context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return pendingForBook(s.reservations, bookID), nil
}

// GetBookInventory implements circulation.Storage.
func (s *FakeStorage) GetBookInventory(_ context.Context, bookID uuid.UUID) (circulation.BookInventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inventory, found := s.books[bookID]
	if !found {
		return circulation.BookInventory{}, circulation.ErrBookNotFound
	}

	return inventory, nil
}

type fakeTx struct {
	loans        map[uuid.UUID]circulation.Loan
	reservations map[uuid.UUID]circulation.Reservation
	books        map[uuid.UUID]circulation.BookInventory
}

func (t *fakeTx) InsertLoan(_ context.Context, loan circulation.Loan) error {
	t.loans[loan.ID] = loan

	return nil
}

func (t *fakeTx) GetLoanForUpdate(_ context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	loan, found := t.loans[loanID]
	if !found {
		return circulation.Loan{}, circulation.ErrLoanNotFound
	}

	return loan, nil
}

func (t *fakeTx) UpdateLoan(_ context.Context, loan circulation.Loan) error {
	if _, found := t.loans[loan.ID]; !found {
		return circulation.ErrLoanNotFound
	}

	t.loans[loan.ID] = loan

	return nil
}

func (t *fakeTx) InsertReservation(_ context.Context, reservation circulation.Reservation) error {
	t.reservations[reservation.ID] = reservation

	return nil
}

func (t *fakeTx) GetReservationForUpdate(_ context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	reservation, found := t.reservations[reservationID]
	if !found {
		return circulation.Reservation{}, circulation.ErrReservationNotFound
	}

	return reservation, nil
}

func (t *fakeTx) UpdateReservation(_ context.Context, reservation circulation.Reservation) error {
	if _, found := t.reservations[reservation.ID]; !found {
		return circulation.ErrReservationNotFound
	}

	t.reservations[reservation.ID] = reservation

	return nil
}

func (t *fakeTx) UpdateQueuePositions(_ context.Context, reservations []circulation.Reservation) error {
	for _, reservation := range reservations {
		if _, found := t.reservations[reservation.ID]; !found {
			return circulation.ErrReservationNotFound
		}

		t.reservations[reservation.ID] = reservation
	}

	return nil
}

func (t *fakeTx) PendingReservations(_ context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	return pendingForBook(t.reservations, bookID), nil
}

func (t *fakeTx) HasOpenReservation(_ context.Context, userID uuid.UUID, bookID uuid.UUID) (bool, error) {
	for _, reservation := range t.reservations {
		if reservation.UserID == userID && reservation.BookID == bookID && reservation.IsOpen() {
			return true, nil
		}
	}

	return false, nil
}

func (t *fakeTx) HasReadyReservation(_ context.Context, bookID uuid.UUID) (bool, error) {
	for _, reservation := range t.reservations {
		if reservation.BookID == bookID && reservation.Status == circulation.ReservationStatusReady {
			return true, nil
		}
	}

	return false, nil
}

func (t *fakeTx) GetBookInventoryForUpdate(_ context.Context, bookID uuid.UUID) (circulation.BookInventory, error) {
	inventory, found := t.books[bookID]
	if !found {
		return circulation.BookInventory{}, circulation.ErrBookNotFound
	}

	return inventory, nil
}

func (t *fakeTx) UpdateBookInventory(_ context.Context, inventory circulation.BookInventory) error {
	if _, found := t.books[inventory.BookID]; !found {
		return circulation.ErrBookNotFound
	}

	t.books[inventory.BookID] = inventory

	return nil
}

func pendingForBook(reservations map[uuid.UUID]circulation.Reservation, bookID uuid.UUID) []circulation.Reservation {
	var pending []circulation.Reservation

	for _, reservation := range reservations {
		if reservation.BookID == bookID && reservation.Status == circulation.ReservationStatusPending {
			pending = append(pending, reservation)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].QueuePosition < pending[j].QueuePosition
	})

	return pending
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for key, value := range src {
		dst[key] = value
	}

	return dst
}
