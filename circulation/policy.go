package circulation

import "time"

// Circulation policy constants.
//
// LoanPeriod is granted on loan creation and again on every renewal,
// always counted from the moment of the operation.
// PickupPeriod is the window a reservation holder has to collect a book.
const (
	LoanPeriod   = 14 * 24 * time.Hour
	PickupPeriod = 7 * 24 * time.Hour

	// DefaultRenewableCount is the number of renewals a new loan allows.
	DefaultRenewableCount = 2
)

// wholeDaysUntil returns the number of whole days between now and deadline,
// truncated (not rounded), never negative.
func wholeDaysUntil(now time.Time, deadline time.Time) int {
	if !deadline.After(now) {
		return 0
	}

	return int(deadline.Sub(now) / (24 * time.Hour))
}
