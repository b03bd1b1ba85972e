package circulation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_BuildReservation_DefaultsPickupDeadlineToPickupPeriod(t *testing.T) {
	// arrange
	reservedAt := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	// act
	reservation, err := circulation.BuildReservation(uuid.New(), uuid.New(), uuid.New(), reservedAt, time.Time{}, 1)

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.ReservationStatusPending, reservation.Status)
	assert.Equal(t, reservedAt, reservation.ReservedAt)
	assert.Equal(t, reservedAt.Add(7*24*time.Hour), reservation.PickupDeadline)
	assert.Equal(t, 1, reservation.QueuePosition)
}

func Test_BuildReservation_KeepsExplicitPickupDeadline(t *testing.T) {
	// arrange
	reservedAt := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	deadline := reservedAt.Add(2 * 24 * time.Hour)

	// act
	reservation, err := circulation.BuildReservation(uuid.New(), uuid.New(), uuid.New(), reservedAt, deadline, 1)

	// assert
	require.NoError(t, err)
	assert.Equal(t, deadline, reservation.PickupDeadline)
}

func Test_BuildReservation_RejectsDeadlineBeforeReservationDate(t *testing.T) {
	// arrange
	reservedAt := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	deadline := reservedAt.Add(-time.Hour)

	// act
	_, err := circulation.BuildReservation(uuid.New(), uuid.New(), uuid.New(), reservedAt, deadline, 1)

	// assert
	assert.ErrorIs(t, err, circulation.ErrDeadlineBeforeReservationDate)
}

func Test_Reservation_IsExpired_And_DaysUntilDeadline(t *testing.T) {
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name            string
		deadline        time.Time
		status          circulation.ReservationStatus
		expectedExpired bool
		expectedDays    int
	}{
		{
			name:            "pending past deadline is expired",
			deadline:        now.Add(-time.Hour),
			status:          circulation.ReservationStatusPending,
			expectedExpired: true,
			expectedDays:    0,
		},
		{
			name:            "pending with two days left",
			deadline:        now.Add(2 * 24 * time.Hour),
			status:          circulation.ReservationStatusPending,
			expectedExpired: false,
			expectedDays:    2,
		},
		{
			name:            "ready past deadline is not reported expired but has zero days",
			deadline:        now.Add(-time.Hour),
			status:          circulation.ReservationStatusReady,
			expectedExpired: false,
			expectedDays:    0,
		},
		{
			name:            "ready counts days until deadline",
			deadline:        now.Add(3 * 24 * time.Hour),
			status:          circulation.ReservationStatusReady,
			expectedExpired: false,
			expectedDays:    3,
		},
		{
			name:            "cancelled has zero days regardless of deadline",
			deadline:        now.Add(5 * 24 * time.Hour),
			status:          circulation.ReservationStatusCancelled,
			expectedExpired: false,
			expectedDays:    0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			reservation := givenPendingReservation(t, now.Add(-24*time.Hour), 1)
			reservation.PickupDeadline = tc.deadline
			reservation.Status = tc.status

			// act + assert
			assert.Equal(t, tc.expectedExpired, reservation.IsExpired(now))
			assert.Equal(t, tc.expectedDays, reservation.DaysUntilDeadline(now))
		})
	}
}

func Test_Reservation_MarkedReady_OnlyFromPending(t *testing.T) {
	// arrange
	reservation := givenPendingReservation(t, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), 1)

	// act
	ready, err := reservation.MarkedReady()

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.ReservationStatusReady, ready.Status)

	// act again - a second promotion must fail
	_, err = ready.MarkedReady()
	assert.ErrorIs(t, err, circulation.ErrReservationNotPending)
}

func Test_Reservation_Cancelled_FromPendingAndReady(t *testing.T) {
	// arrange
	reservation := givenPendingReservation(t, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), 1)

	// act + assert - pending can be cancelled
	cancelled, err := reservation.Cancelled()
	require.NoError(t, err)
	assert.Equal(t, circulation.ReservationStatusCancelled, cancelled.Status)

	// act + assert - ready can be cancelled
	ready, err := reservation.MarkedReady()
	require.NoError(t, err)
	cancelled, err = ready.Cancelled()
	require.NoError(t, err)
	assert.Equal(t, circulation.ReservationStatusCancelled, cancelled.Status)

	// act + assert - cancelling a closed reservation fails
	_, err = cancelled.Cancelled()
	assert.ErrorIs(t, err, circulation.ErrReservationAlreadyClosed)
}

func Test_RenumberPending_AssignsContiguousPositionsByReservationDate(t *testing.T) {
	// arrange - created out of order, with stale position values
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	second := givenPendingReservation(t, base.Add(24*time.Hour), 7)
	third := givenPendingReservation(t, base.Add(48*time.Hour), 2)
	first := givenPendingReservation(t, base, 5)

	// act
	renumbered := circulation.RenumberPending([]circulation.Reservation{second, third, first})

	// assert
	require.Len(t, renumbered, 3)
	assert.Equal(t, first.ID, renumbered[0].ID)
	assert.Equal(t, 1, renumbered[0].QueuePosition)
	assert.Equal(t, second.ID, renumbered[1].ID)
	assert.Equal(t, 2, renumbered[1].QueuePosition)
	assert.Equal(t, third.ID, renumbered[2].ID)
	assert.Equal(t, 3, renumbered[2].QueuePosition)
}

func Test_RenumberPending_AfterCancellingTheHead(t *testing.T) {
	// arrange - R1 day 0, R2 day 1, R3 day 2 with positions 1, 2, 3
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	r1 := givenPendingReservation(t, base, 1)
	r2 := givenPendingReservation(t, base.Add(24*time.Hour), 2)
	r3 := givenPendingReservation(t, base.Add(48*time.Hour), 3)
	_ = r1 // cancelled, leaves the pending set

	// act
	renumbered := circulation.RenumberPending([]circulation.Reservation{r2, r3})

	// assert - R2 becomes position 1, R3 becomes position 2
	require.Len(t, renumbered, 2)
	assert.Equal(t, r2.ID, renumbered[0].ID)
	assert.Equal(t, 1, renumbered[0].QueuePosition)
	assert.Equal(t, r3.ID, renumbered[1].ID)
	assert.Equal(t, 2, renumbered[1].QueuePosition)
}

func Test_RenumberPending_EmptySetAndInputUntouched(t *testing.T) {
	// arrange
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	stale := givenPendingReservation(t, base, 9)
	input := []circulation.Reservation{stale}

	// act
	empty := circulation.RenumberPending(nil)
	renumbered := circulation.RenumberPending(input)

	// assert
	assert.Empty(t, empty)
	assert.Equal(t, 1, renumbered[0].QueuePosition)
	assert.Equal(t, 9, input[0].QueuePosition) // input slice is not modified
}

func givenPendingReservation(t *testing.T, reservedAt time.Time, position int) circulation.Reservation {
	t.Helper()

	reservation, err := circulation.BuildReservation(uuid.New(), uuid.New(), uuid.New(), reservedAt, time.Time{}, position)
	require.NoError(t, err)

	return reservation
}
