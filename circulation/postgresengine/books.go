package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// bookRow is the scan target for book inventory table rows.
type bookRow struct {
	bookID          string
	totalCopies     int
	availableCopies int
	status          string
}

// GetBookInventory implements circulation.Storage.
func (cs CirculationStore) GetBookInventory(ctx context.Context, bookID uuid.UUID) (circulation.BookInventory, error) {
	return cs.getBookInventory(ctx, cs.db, bookID, false)
}

func (cs CirculationStore) getBookInventory(
	ctx context.Context,
	runner dbRunner,
	bookID uuid.UUID,
	forUpdate bool,
) (circulation.BookInventory, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(cs.bookTableName).
		Select(colBookID, colTotalCopies, colAvailableCopies, colStatus).
		Where(goqu.Ex{colBookID: bookID.String()})

	if forUpdate {
		selectStmt = selectStmt.ForUpdate(exp.Wait)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		cs.logError(logMsgBuildQueryFailed, toSQLErr)

		return circulation.BookInventory{}, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := cs.executeQuery(ctx, runner, sqlQuery)
	if queryErr != nil {
		return circulation.BookInventory{}, queryErr
	}
	defer cs.closeRows(rows)

	if !rows.Next() {
		return circulation.BookInventory{}, circulation.ErrBookNotFound
	}

	row := bookRow{}
	if scanErr := rows.Scan(&row.bookID, &row.totalCopies, &row.availableCopies, &row.status); scanErr != nil {
		cs.logError(logMsgScanRowFailed, scanErr)

		return circulation.BookInventory{}, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
	}

	id, parseErr := uuid.Parse(row.bookID)
	if parseErr != nil {
		cs.logError(logMsgScanRowFailed, parseErr)

		return circulation.BookInventory{}, errors.Join(circulation.ErrScanningDBRowFailed, parseErr)
	}

	return circulation.BookInventory{
		BookID:          id,
		TotalCopies:     row.totalCopies,
		AvailableCopies: row.availableCopies,
		Status:          circulation.BookStatus(row.status),
	}, nil
}

func (cs CirculationStore) updateBookInventory(
	ctx context.Context,
	runner dbRunner,
	inventory circulation.BookInventory,
) error {

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(cs.bookTableName).
		Set(goqu.Record{
			colTotalCopies:     inventory.TotalCopies,
			colAvailableCopies: inventory.AvailableCopies,
			colStatus:          string(inventory.Status),
		}).
		Where(goqu.Ex{colBookID: inventory.BookID.String()})

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
		return circulation.ErrBookNotFound
	}

	cs.logOperation(
		logMsgInventoryUpdated,
		logAttrBookID, inventory.BookID.String(),
		logAttrDurationMS, cs.toMilliseconds(duration))

	return nil
}
