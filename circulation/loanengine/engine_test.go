package loanengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/loanengine"
	"github.com/AntonStoeckl/library-circulation-go/circulation/shell"
	testutil "github.com/AntonStoeckl/library-circulation-go/testutil/circulation"
)

func Test_CreateLoan_LendsBookAndTakesCopyOffShelf(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	bookID := givenBookWithCopies(storage, 2)
	userID := uuid.New()
	command := loanengine.BuildCreateLoanCommand(userID, bookID, time.Time{})

	// act
	loan, err := engine.CreateLoan(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, command.LoanID, loan.ID)
	assert.Equal(t, circulation.LoanStatusActive, loan.Status)
	assert.Equal(t, clock.Now().Add(circulation.LoanPeriod), loan.DueDate)

	stored, err := storage.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan, stored)

	inventory, err := storage.GetBookInventory(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, inventory.AvailableCopies)
	assert.Equal(t, circulation.BookStatusAvailable, inventory.Status)
}

func Test_CreateLoan_LastCopy_MarksBookBorrowed(t *testing.T) {
	// arrange
	engine, storage, _ := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	command := loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{})

	// act
	_, err := engine.CreateLoan(context.Background(), command)

	// assert
	require.NoError(t, err)

	inventory, err := storage.GetBookInventory(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, inventory.AvailableCopies)
	assert.Equal(t, circulation.BookStatusBorrowed, inventory.Status)
}

func Test_CreateLoan_FailsWhenNoCopiesAvailable(t *testing.T) {
	// arrange
	engine, storage, _ := givenEngine(t)
	bookID := uuid.New()
	storage.SeedBook(circulation.BookInventory{
		BookID:          bookID,
		TotalCopies:     3,
		AvailableCopies: 0,
		Status:          circulation.BookStatusBorrowed,
	})
	command := loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{})

	// act
	_, err := engine.CreateLoan(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, circulation.ErrNoCopiesAvailable)

	_, err = storage.GetLoan(context.Background(), command.LoanID)
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)
}

func Test_CreateLoan_FailsWhenBookIsUnknown(t *testing.T) {
	// arrange
	engine, _, _ := givenEngine(t)
	command := loanengine.BuildCreateLoanCommand(uuid.New(), uuid.New(), time.Time{})

	// act
	_, err := engine.CreateLoan(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func Test_CreateLoan_RejectsDueDateBeforeBorrowDate(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	command := loanengine.BuildCreateLoanCommand(uuid.New(), bookID, clock.Now().Add(-time.Hour))

	// act
	_, err := engine.CreateLoan(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, circulation.ErrDueDateBeforeBorrowDate)
}

func Test_CreateLoan_SucceedsAfterTransientConcurrencyConflicts(t *testing.T) {
	// arrange
	engine, storage, _ := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	command := loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{})
	storage.InjectConflicts(2)

	// act
	_, err := engine.CreateLoan(context.Background(), command)

	// assert
	require.NoError(t, err)

	stored, err := storage.GetLoan(context.Background(), command.LoanID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanStatusActive, stored.Status)
}

func Test_Renew_GrantsFreshLoanPeriodFromNow(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	loanID := givenActiveLoan(storage, clock.Now())
	clock.Advance(5 * 24 * time.Hour)

	// act
	renewed, err := engine.Renew(context.Background(), loanengine.BuildRenewLoanCommand(loanID))

	// assert
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(circulation.LoanPeriod), renewed.DueDate)
	assert.Equal(t, 1, renewed.RenewedCount)

	stored, err := storage.GetLoan(context.Background(), loanID)
	require.NoError(t, err)
	assert.Equal(t, renewed, stored)
}

func Test_Renew_FailsAfterRenewalBudgetIsExhausted(t *testing.T) {
	// arrange
	engine, storage, _ := givenEngine(t)
	loanID := givenActiveLoan(storage, time.Now())
	command := loanengine.BuildRenewLoanCommand(loanID)

	_, err := engine.Renew(context.Background(), command)
	require.NoError(t, err)
	_, err = engine.Renew(context.Background(), command)
	require.NoError(t, err)

	// act
	_, err = engine.Renew(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, circulation.ErrRenewalLimitReached)

	stored, storageErr := storage.GetLoan(context.Background(), loanID)
	require.NoError(t, storageErr)
	assert.Equal(t, 2, stored.RenewedCount)
}

func Test_Renew_FailsForReturnedLoan(t *testing.T) {
	// arrange
	engine, storage, _ := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	created, err := engine.CreateLoan(
		context.Background(),
		loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{}),
	)
	require.NoError(t, err)

	_, err = engine.ReturnBook(context.Background(), loanengine.BuildReturnBookCommand(created.ID))
	require.NoError(t, err)

	// act
	_, err = engine.Renew(context.Background(), loanengine.BuildRenewLoanCommand(created.ID))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanNotActive)
}

func Test_ReturnBook_TerminatesLoanAndPutsCopyBack(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	created, err := engine.CreateLoan(
		context.Background(),
		loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{}),
	)
	require.NoError(t, err)
	clock.Advance(3 * 24 * time.Hour)

	// act
	returned, err := engine.ReturnBook(context.Background(), loanengine.BuildReturnBookCommand(created.ID))

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, clock.Now(), *returned.ReturnedAt)

	inventory, err := storage.GetBookInventory(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, inventory.AvailableCopies)
	assert.Equal(t, circulation.BookStatusAvailable, inventory.Status)
}

func Test_ReturnBook_MarksBookReservedWhenReadyReservationWaits(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	created, err := engine.CreateLoan(
		context.Background(),
		loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{}),
	)
	require.NoError(t, err)

	pending, err := circulation.BuildReservation(uuid.New(), uuid.New(), bookID, clock.Now(), time.Time{}, 1)
	require.NoError(t, err)
	ready, err := pending.MarkedReady()
	require.NoError(t, err)
	storage.SeedReservation(ready)

	// act
	_, err = engine.ReturnBook(context.Background(), loanengine.BuildReturnBookCommand(created.ID))

	// assert
	require.NoError(t, err)

	inventory, err := storage.GetBookInventory(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, inventory.AvailableCopies)
	assert.Equal(t, circulation.BookStatusReserved, inventory.Status)
}

func Test_ReturnBook_FailsWhenLoanIsAlreadyReturned(t *testing.T) {
	// arrange
	engine, storage, _ := givenEngine(t)
	bookID := givenBookWithCopies(storage, 1)
	created, err := engine.CreateLoan(
		context.Background(),
		loanengine.BuildCreateLoanCommand(uuid.New(), bookID, time.Time{}),
	)
	require.NoError(t, err)

	command := loanengine.BuildReturnBookCommand(created.ID)
	_, err = engine.ReturnBook(context.Background(), command)
	require.NoError(t, err)

	// act
	_, err = engine.ReturnBook(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanAlreadyReturned)

	inventory, storageErr := storage.GetBookInventory(context.Background(), bookID)
	require.NoError(t, storageErr)
	assert.Equal(t, 1, inventory.AvailableCopies)
}

func Test_OverdueQueries_ReflectTheInjectedClock(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	userID := uuid.New()

	loan, err := circulation.BuildLoan(uuid.New(), userID, uuid.New(), clock.Now(), time.Time{})
	require.NoError(t, err)
	storage.SeedLoan(loan)

	// act + assert before the due date
	overdue, err := engine.IsOverdue(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.False(t, overdue)

	daysLeft, err := engine.DaysLeft(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, daysLeft)

	// act + assert one day past the due date
	clock.Advance(15 * 24 * time.Hour)

	overdue, err = engine.IsOverdue(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.True(t, overdue)

	daysLeft, err = engine.DaysLeft(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, daysLeft)

	overdueLoans, err := engine.OverdueLoansOfUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, overdueLoans, 1)
	assert.Equal(t, loan.ID, overdueLoans[0].ID)
}

func Test_LoansOfUser_ReturnsMostRecentlyBorrowedFirst(t *testing.T) {
	// arrange
	engine, storage, clock := givenEngine(t)
	userID := uuid.New()

	older, err := circulation.BuildLoan(uuid.New(), userID, uuid.New(), clock.Now(), time.Time{})
	require.NoError(t, err)
	storage.SeedLoan(older)

	newer, err := circulation.BuildLoan(uuid.New(), userID, uuid.New(), clock.Now().Add(time.Hour), time.Time{})
	require.NoError(t, err)
	storage.SeedLoan(newer)

	// act
	loans, err := engine.LoansOfUser(context.Background(), userID)

	// assert
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, newer.ID, loans[0].ID)
	assert.Equal(t, older.ID, loans[1].ID)
}

func givenEngine(t *testing.T) (*loanengine.Engine, *testutil.FakeStorage, *testutil.FixedClock) {
	t.Helper()

	storage := testutil.NewFakeStorage()
	clock := testutil.NewFixedClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	engine := loanengine.NewEngine(
		storage,
		loanengine.WithClock(clock),
		loanengine.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	)

	return engine, storage, clock
}

func givenBookWithCopies(storage *testutil.FakeStorage, copies int) uuid.UUID {
	bookID := uuid.New()
	storage.SeedBook(circulation.BookInventory{
		BookID:          bookID,
		TotalCopies:     copies,
		AvailableCopies: copies,
		Status:          circulation.BookStatusAvailable,
	})

	return bookID
}

func givenActiveLoan(storage *testutil.FakeStorage, borrowedAt time.Time) uuid.UUID {
	loan, err := circulation.BuildLoan(uuid.New(), uuid.New(), uuid.New(), borrowedAt, time.Time{})
	if err != nil {
		panic(err)
	}

	storage.SeedLoan(loan)

	return loan.ID
}
