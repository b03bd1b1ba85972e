// Package circulation provides the core domain model for a library
// circulation system: loans, reservations, and per-book availability.
//
// This package defines the state machines as pure types and functions with
// no I/O. Deadline math is driven by an injectable Clock, derived properties
// (overdue, expired, days left) are recomputed on every read and never
// persisted, and reservation queue positions are recomputed over the whole
// pending set instead of being patched incrementally.
//
// Key types:
//   - Loan: a borrowed book with due date, renewal budget, and return state
//   - Reservation: a place in a per-book waiting queue with pickup deadline
//   - BookInventory: copy counts and status for a single book
//   - Storage / TxStorage: the persistence contract consumed by the engines
//
// The engines orchestrating these types live in the loanengine and
// reservationengine sub-packages; the PostgreSQL implementation of the
// storage contract lives in postgresengine.
package circulation
