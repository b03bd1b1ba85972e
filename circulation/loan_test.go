package circulation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_BuildLoan_DefaultsDueDateToLoanPeriod(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// act
	loan, err := circulation.BuildLoan(uuid.New(), uuid.New(), uuid.New(), borrowedAt, time.Time{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanStatusActive, loan.Status)
	assert.Equal(t, borrowedAt, loan.BorrowedAt)
	assert.Equal(t, borrowedAt.Add(14*24*time.Hour), loan.DueDate)
	assert.Equal(t, circulation.DefaultRenewableCount, loan.RenewableCount)
	assert.Equal(t, 0, loan.RenewedCount)
	assert.Nil(t, loan.ReturnedAt)
}

func Test_BuildLoan_KeepsExplicitDueDate(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	dueDate := borrowedAt.Add(3 * 24 * time.Hour)

	// act
	loan, err := circulation.BuildLoan(uuid.New(), uuid.New(), uuid.New(), borrowedAt, dueDate)

	// assert
	require.NoError(t, err)
	assert.Equal(t, dueDate, loan.DueDate)
}

func Test_BuildLoan_RejectsDueDateBeforeBorrowDate(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	dueDate := borrowedAt.Add(-time.Hour)

	// act
	_, err := circulation.BuildLoan(uuid.New(), uuid.New(), uuid.New(), borrowedAt, dueDate)

	// assert
	assert.ErrorIs(t, err, circulation.ErrDueDateBeforeBorrowDate)
}

func Test_Loan_IsOverdue_And_DaysLeft(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name            string
		dueDate         time.Time
		status          circulation.LoanStatus
		expectedOverdue bool
		expectedDays    int
	}{
		{
			name:            "due one day in the past is overdue with zero days left",
			dueDate:         now.Add(-24 * time.Hour),
			status:          circulation.LoanStatusActive,
			expectedOverdue: true,
			expectedDays:    0,
		},
		{
			name:            "due in three days is not overdue",
			dueDate:         now.Add(3 * 24 * time.Hour),
			status:          circulation.LoanStatusActive,
			expectedOverdue: false,
			expectedDays:    3,
		},
		{
			name:            "due in less than a whole day truncates to zero",
			dueDate:         now.Add(23 * time.Hour),
			status:          circulation.LoanStatusActive,
			expectedOverdue: false,
			expectedDays:    0,
		},
		{
			name:            "due exactly now is not overdue yet",
			dueDate:         now,
			status:          circulation.LoanStatusActive,
			expectedOverdue: false,
			expectedDays:    0,
		},
		{
			name:            "returned loan is never overdue and has zero days left",
			dueDate:         now.Add(-24 * time.Hour),
			status:          circulation.LoanStatusReturned,
			expectedOverdue: false,
			expectedDays:    0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			loan := givenActiveLoan(t, now.Add(-10*24*time.Hour), tc.dueDate)
			loan.Status = tc.status

			// act + assert
			assert.Equal(t, tc.expectedOverdue, loan.IsOverdue(now))
			assert.Equal(t, tc.expectedDays, loan.DaysLeft(now))
		})
	}
}

func Test_Loan_Renewed_GrantsFreshPeriodFromNow(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := borrowedAt.Add(11 * 24 * time.Hour) // 3 days of slack left
	loan := givenActiveLoan(t, borrowedAt, time.Time{})

	// act
	renewed, err := loan.Renewed(now)

	// assert
	require.NoError(t, err)
	assert.Equal(t, now.Add(14*24*time.Hour), renewed.DueDate)
	assert.Equal(t, 1, renewed.RenewedCount)
	assert.Equal(t, circulation.LoanStatusActive, renewed.Status)
}

func Test_Loan_Renewed_TwiceSucceeds_ThirdFailsWithoutMutation(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := borrowedAt.Add(11 * 24 * time.Hour)
	loan := givenActiveLoan(t, borrowedAt, time.Time{})

	// act
	first, err := loan.Renewed(now)
	require.NoError(t, err)

	second, err := first.Renewed(now.Add(time.Hour))
	require.NoError(t, err)

	_, err = second.Renewed(now.Add(2 * time.Hour))

	// assert
	assert.ErrorIs(t, err, circulation.ErrRenewalLimitReached)
	assert.Equal(t, 2, second.RenewedCount)
	assert.Equal(t, now.Add(time.Hour).Add(14*24*time.Hour), second.DueDate)
	assert.False(t, second.CanRenew())
}

func Test_Loan_Renewed_FailsForReturnedLoan(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := borrowedAt.Add(24 * time.Hour)
	loan := givenActiveLoan(t, borrowedAt, time.Time{})
	returned, err := loan.Returned(now)
	require.NoError(t, err)

	// act
	_, err = returned.Renewed(now)

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanNotActive)
}

func Test_Loan_RenewedCount_NeverExceedsRenewableCount(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := givenActiveLoan(t, borrowedAt, time.Time{})

	// act - attempt many more renewals than the budget allows
	now := borrowedAt
	for i := 0; i < 10; i++ {
		now = now.Add(24 * time.Hour)

		renewed, err := loan.Renewed(now)
		if err != nil {
			assert.ErrorIs(t, err, circulation.ErrRenewalLimitReached)
			continue
		}

		loan = renewed

		// assert - invariant holds after every successful renewal
		assert.LessOrEqual(t, loan.RenewedCount, loan.RenewableCount)
	}

	assert.Equal(t, loan.RenewableCount, loan.RenewedCount)
}

func Test_Loan_Returned_SetsReturnDateAndStatus(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := borrowedAt.Add(5 * 24 * time.Hour)
	loan := givenActiveLoan(t, borrowedAt, time.Time{})

	// act
	returned, err := loan.Returned(now)

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, now, *returned.ReturnedAt)
}

func Test_Loan_Returned_SecondReturnFails(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := borrowedAt.Add(5 * 24 * time.Hour)
	loan := givenActiveLoan(t, borrowedAt, time.Time{})
	returned, err := loan.Returned(now)
	require.NoError(t, err)

	// act
	_, err = returned.Returned(now.Add(time.Hour))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanAlreadyReturned)
}

func Test_Loan_Returned_WorksForOverduePromotedLoan(t *testing.T) {
	// arrange - an external maintenance process promoted the stored status
	borrowedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := givenActiveLoan(t, borrowedAt, time.Time{})
	loan.Status = circulation.LoanStatusOverdue

	// act
	returned, err := loan.Returned(borrowedAt.Add(30 * 24 * time.Hour))

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanStatusReturned, returned.Status)
}

func givenActiveLoan(t *testing.T, borrowedAt time.Time, dueDate time.Time) circulation.Loan {
	t.Helper()

	loan, err := circulation.BuildLoan(uuid.New(), uuid.New(), uuid.New(), borrowedAt, dueDate)
	require.NoError(t, err)

	return loan
}
