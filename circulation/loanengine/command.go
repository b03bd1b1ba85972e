package loanengine

import (
	"time"

	"github.com/google/uuid"
)

const (
	createLoanCommandType = "CreateLoan"
	renewLoanCommandType  = "RenewLoan"
	returnBookCommandType = "ReturnBook"
)

// CreateLoanCommand represents the intent to lend a book to a user.
// A zero DueDate defaults to the borrow date plus the loan period.
type CreateLoanCommand struct {
	LoanID   uuid.UUID
	UserID   uuid.UUID
	BookID   uuid.UUID
	DueDate  time.Time
	Notes    string
	Metadata map[string]string
}

// CommandType returns the type identifier for this command.
func (c CreateLoanCommand) CommandType() string {
	return createLoanCommandType
}

// BuildCreateLoanCommand creates a new CreateLoanCommand with a fresh loan ID.
func BuildCreateLoanCommand(userID uuid.UUID, bookID uuid.UUID, dueDate time.Time) CreateLoanCommand {
	return CreateLoanCommand{
		LoanID:  uuid.New(),
		UserID:  userID,
		BookID:  bookID,
		DueDate: dueDate,
	}
}

// RenewLoanCommand represents the intent to grant a loan a fresh loan period.
type RenewLoanCommand struct {
	LoanID uuid.UUID
}

// CommandType returns the type identifier for this command.
func (c RenewLoanCommand) CommandType() string {
	return renewLoanCommandType
}

// BuildRenewLoanCommand creates a new RenewLoanCommand.
func BuildRenewLoanCommand(loanID uuid.UUID) RenewLoanCommand {
	return RenewLoanCommand{LoanID: loanID}
}

// ReturnBookCommand represents the intent to terminate a loan by returning the book.
type ReturnBookCommand struct {
	LoanID uuid.UUID
}

// CommandType returns the type identifier for this command.
func (c ReturnBookCommand) CommandType() string {
	return returnBookCommandType
}

// BuildReturnBookCommand creates a new ReturnBookCommand.
func BuildReturnBookCommand(loanID uuid.UUID) ReturnBookCommand {
	return ReturnBookCommand{LoanID: loanID}
}
