package postgresengine

import (
	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// Logger interface for SQL query logging, operational information, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option defines a functional option for configuring CirculationStore.
type Option func(*CirculationStore) error

// WithLoanTableName sets the loan table name for the CirculationStore.
func WithLoanTableName(tableName string) Option {
	return func(cs *CirculationStore) error {
		if tableName == "" {
			return circulation.ErrEmptyTableNameSupplied
		}

		cs.loanTableName = tableName

		return nil
	}
}

// WithReservationTableName sets the reservation table name for the CirculationStore.
func WithReservationTableName(tableName string) Option {
	return func(cs *CirculationStore) error {
		if tableName == "" {
			return circulation.ErrEmptyTableNameSupplied
		}

		cs.reservationTableName = tableName

		return nil
	}
}

// WithBookTableName sets the book inventory table name for the CirculationStore.
func WithBookTableName(tableName string) Option {
	return func(cs *CirculationStore) error {
		if tableName == "" {
			return circulation.ErrEmptyTableNameSupplied
		}

		cs.bookTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the CirculationStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Row counts, durations, concurrency conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(cs *CirculationStore) error {
		cs.logger = logger
		return nil
	}
}
