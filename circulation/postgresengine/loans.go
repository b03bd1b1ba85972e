package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine/internal/adapters"
)

// loanRow is the scan target for loan table rows.
type loanRow struct {
	id             string
	userID         string
	bookID         string
	borrowedAt     time.Time
	dueDate        time.Time
	returnedAt     sql.NullTime
	status         string
	renewableCount int
	renewedCount   int
	notes          string
	metadata       []byte
}

// GetLoan implements circulation.Storage.
func (cs CirculationStore) GetLoan(ctx context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	return cs.getLoan(ctx, cs.db, loanID, false)
}

// LoansOfUser implements circulation.Storage, returning the user's loans
// most recently borrowed first.
func (cs CirculationStore) LoansOfUser(ctx context.Context, userID uuid.UUID) ([]circulation.Loan, error) {
	selectStmt := cs.selectLoans().
		Where(goqu.Ex{colUserID: userID.String()}).
		Order(goqu.I(colBorrowedAt).Desc())

	return cs.queryLoans(ctx, cs.db, selectStmt)
}

// OverdueLoansOfUser implements circulation.Storage, returning the user's
// active loans whose due date lies before asOf, ordered by due date ascending.
func (cs CirculationStore) OverdueLoansOfUser(
	ctx context.Context,
	userID uuid.UUID,
	asOf time.Time,
) ([]circulation.Loan, error) {

	selectStmt := cs.selectLoans().
		Where(goqu.Ex{
			colUserID:  userID.String(),
			colStatus:  string(circulation.LoanStatusActive),
			colDueDate: goqu.Op{"lt": asOf},
		}).
		Order(goqu.I(colDueDate).Asc())

	return cs.queryLoans(ctx, cs.db, selectStmt)
}

func (cs CirculationStore) getLoan(
	ctx context.Context,
	runner dbRunner,
	loanID uuid.UUID,
	forUpdate bool,
) (circulation.Loan, error) {

	selectStmt := cs.selectLoans().Where(goqu.Ex{colID: loanID.String()})
	if forUpdate {
		selectStmt = selectStmt.ForUpdate(exp.Wait)
	}

	loans, err := cs.queryLoans(ctx, runner, selectStmt)
	if err != nil {
		return circulation.Loan{}, err
	}

	if len(loans) == 0 {
		return circulation.Loan{}, circulation.ErrLoanNotFound
	}

	return loans[0], nil
}

func (cs CirculationStore) insertLoan(ctx context.Context, runner dbRunner, loan circulation.Loan) error {
	record, recordErr := cs.loanRecord(loan)
	if recordErr != nil {
		return recordErr
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(cs.loanTableName).
		Rows(record)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		cs.logError(logMsgBuildQueryFailed, toSQLErr)

		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	_, duration, execErr := cs.executeStatement(ctx, runner, sqlQuery)
	if execErr != nil {
		return execErr
	}

	cs.logOperation(
		logMsgLoanInserted,
		logAttrLoanID, loan.ID.String(),
		logAttrDurationMS, cs.toMilliseconds(duration))

	return nil
}

func (cs CirculationStore) updateLoan(ctx context.Context, runner dbRunner, loan circulation.Loan) error {
	record, recordErr := cs.loanRecord(loan)
	if recordErr != nil {
		return recordErr
	}

	delete(record, colID)

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(cs.loanTableName).
		Set(record).
		Where(goqu.Ex{colID: loan.ID.String()})

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		cs.logError(logMsgBuildQueryFailed, toSQLErr)

		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, duration, execErr := cs.executeStatement(ctx, runner, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return circulation.ErrLoanNotFound
	}

	cs.logOperation(
		logMsgLoanUpdated,
		logAttrLoanID, loan.ID.String(),
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, cs.toMilliseconds(duration))

	return nil
}

func (cs CirculationStore) selectLoans() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(cs.loanTableName).
		Select(
			colID, colUserID, colBookID, colBorrowedAt, colDueDate, colReturnedAt,
			colStatus, colRenewableCount, colRenewedCount, colNotes, colMetadata,
		)
}

func (cs CirculationStore) queryLoans(
	ctx context.Context,
	runner dbRunner,
	selectStmt *goqu.SelectDataset,
) ([]circulation.Loan, error) {

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		cs.logError(logMsgBuildQueryFailed, toSQLErr)

		return nil, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := cs.executeQuery(ctx, runner, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer cs.closeRows(rows)

	return cs.scanLoans(rows)
}

func (cs CirculationStore) scanLoans(rows adapters.DBRows) ([]circulation.Loan, error) {
	loans := make([]circulation.Loan, 0)
	row := loanRow{}

	for rows.Next() {
		scanErr := rows.Scan(
			&row.id, &row.userID, &row.bookID, &row.borrowedAt, &row.dueDate, &row.returnedAt,
			&row.status, &row.renewableCount, &row.renewedCount, &row.notes, &row.metadata,
		)
		if scanErr != nil {
			cs.logError(logMsgScanRowFailed, scanErr)

			return nil, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
		}

		loan, mapErr := loanFromRow(row)
		if mapErr != nil {
			cs.logError(logMsgScanRowFailed, mapErr)

			return nil, errors.Join(circulation.ErrScanningDBRowFailed, mapErr)
		}

		loans = append(loans, loan)
	}

	return loans, nil
}

func (cs CirculationStore) loanRecord(loan circulation.Loan) (goqu.Record, error) {
	metadataJSON, marshalErr := marshalMetadata(loan.Metadata)
	if marshalErr != nil {
		cs.logError(logMsgMarshalMetadataFailed, marshalErr, logAttrLoanID, loan.ID.String())

		return nil, marshalErr
	}

	var returnedAt any
	if loan.ReturnedAt != nil {
		returnedAt = *loan.ReturnedAt
	}

	return goqu.Record{
		colID:             loan.ID.String(),
		colUserID:         loan.UserID.String(),
		colBookID:         loan.BookID.String(),
		colBorrowedAt:     loan.BorrowedAt,
		colDueDate:        loan.DueDate,
		colReturnedAt:     returnedAt,
		colStatus:         string(loan.Status),
		colRenewableCount: loan.RenewableCount,
		colRenewedCount:   loan.RenewedCount,
		colNotes:          loan.Notes,
		colMetadata:       string(metadataJSON),
	}, nil
}

func loanFromRow(row loanRow) (circulation.Loan, error) {
	id, err := uuid.Parse(row.id)
	if err != nil {
		return circulation.Loan{}, err
	}

	userID, err := uuid.Parse(row.userID)
	if err != nil {
		return circulation.Loan{}, err
	}

	bookID, err := uuid.Parse(row.bookID)
	if err != nil {
		return circulation.Loan{}, err
	}

	metadata, err := unmarshalMetadata(row.metadata)
	if err != nil {
		return circulation.Loan{}, err
	}

	var returnedAt *time.Time
	if row.returnedAt.Valid {
		t := row.returnedAt.Time
		returnedAt = &t
	}

	return circulation.Loan{
		ID:             id,
		UserID:         userID,
		BookID:         bookID,
		BorrowedAt:     row.borrowedAt,
		DueDate:        row.dueDate,
		ReturnedAt:     returnedAt,
		Status:         circulation.LoanStatus(row.status),
		RenewableCount: row.renewableCount,
		RenewedCount:   row.renewedCount,
		Notes:          row.notes,
		Metadata:       metadata,
	}, nil
}
