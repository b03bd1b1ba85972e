package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine/internal/adapters"
)

// reservationRow is the scan target for reservation table rows.
type reservationRow struct {
	id             string
	userID         string
	bookID         string
	reservedAt     time.Time
	pickupDeadline time.Time
	status         string
	queuePosition  int
	notes          string
	metadata       []byte
}

// GetReservation implements circulation.Storage.
func (cs CirculationStore) GetReservation(ctx context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	return cs.getReservation(ctx, cs.db, reservationID, false)
}

// ReservationsOfUser implements circulation.Storage, returning the user's
// reservations most recently reserved first.
func (cs CirculationStore) ReservationsOfUser(ctx context.Context, userID uuid.UUID) ([]circulation.Reservation, error) {
	selectStmt := cs.selectReservations().
		Where(goqu.Ex{colUserID: userID.String()}).
		Order(goqu.I(colReservedAt).Desc())

	return cs.queryReservations(ctx, cs.db, selectStmt)
}

// ReadyForPickup implements circulation.Storage, returning the user's ready
// reservations ordered by pickup deadline ascending.
func (cs CirculationStore) ReadyForPickup(ctx context.Context, userID uuid.UUID) ([]circulation.Reservation, error) {
	selectStmt := cs.selectReservations().
		Where(goqu.Ex{
			colUserID: userID.String(),
			colStatus: string(circulation.ReservationStatusReady),
		}).
		Order(goqu.I(colPickupDeadline).Asc())

	return cs.queryReservations(ctx, cs.db, selectStmt)
}

// QueueForBook implements circulation.Storage, returning the book's pending
// reservations ordered by queue position ascending.
func (cs CirculationStore) QueueForBook(ctx context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	selectStmt := cs.selectPendingForBook(bookID)

	return cs.queryReservations(ctx, cs.db, selectStmt)
}

func (cs CirculationStore) getReservation(
	ctx context.Context,
	runner dbRunner,
	reservationID uuid.UUID,
	forUpdate bool,
) (circulation.Reservation, error) {

	selectStmt := cs.selectReservations().Where(goqu.Ex{colID: reservationID.String()})
	if forUpdate {
		selectStmt = selectStmt.ForUpdate(exp.Wait)
	}

	reservations, err := cs.queryReservations(ctx, runner, selectStmt)
	if err != nil {
		return circulation.Reservation{}, err
	}

	if len(reservations) == 0 {
		return circulation.Reservation{}, circulation.ErrReservationNotFound
	}

	return reservations[0], nil
}

func (cs CirculationStore) insertReservation(
	ctx context.Context,
	runner dbRunner,
	reservation circulation.Reservation,
) error {

	record, recordErr := cs.reservationRecord(reservation)
	if recordErr != nil {
		return recordErr
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(cs.reservationTableName).
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
		logMsgReservationInserted,
		logAttrRsvID, reservation.ID.String(),
		logAttrDurationMS, cs.toMilliseconds(duration))

	return nil
}

func (cs CirculationStore) updateReservation(
	ctx context.Context,
	runner dbRunner,
	reservation circulation.Reservation,
) error {

	record, recordErr := cs.reservationRecord(reservation)
	if recordErr != nil {
		return recordErr
	}

	delete(record, colID)

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(cs.reservationTableName).
		Set(record).
		Where(goqu.Ex{colID: reservation.ID.String()})

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
		return circulation.ErrReservationNotFound
	}

	cs.logOperation(
		logMsgReservationUpdated,
		logAttrRsvID, reservation.ID.String(),
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, cs.toMilliseconds(duration))

	return nil
}

// updateQueuePositions persists recomputed queue positions, one update per
// changed row. The caller holds the book's inventory row lock, so the
// position sequence cannot be raced by a concurrent renumbering.
func (cs CirculationStore) updateQueuePositions(
	ctx context.Context,
	runner dbRunner,
	reservations []circulation.Reservation,
) error {

	for _, reservation := range reservations {
		updateStmt := goqu.Dialect(dialectPostgres).
			Update(cs.reservationTableName).
			Set(goqu.Record{colQueuePosition: reservation.QueuePosition}).
			Where(goqu.Ex{colID: reservation.ID.String()})

		sqlQuery, _, toSQLErr := updateStmt.ToSQL()
		if toSQLErr != nil {
			cs.logError(logMsgBuildQueryFailed, toSQLErr)

			return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
		}

		rowsAffected, _, execErr := cs.executeStatement(ctx, runner, sqlQuery)
		if execErr != nil {
			return execErr
		}

		if rowsAffected == 0 {
			return circulation.ErrReservationNotFound
		}
	}

	cs.logOperation(logMsgQueueRenumbered, logAttrRowsAffected, len(reservations))

	return nil
}

func (cs CirculationStore) pendingReservations(
	ctx context.Context,
	runner dbRunner,
	bookID uuid.UUID,
) ([]circulation.Reservation, error) {

	return cs.queryReservations(ctx, runner, cs.selectPendingForBook(bookID))
}

func (cs CirculationStore) hasOpenReservation(
	ctx context.Context,
	runner dbRunner,
	userID uuid.UUID,
	bookID uuid.UUID,
) (bool, error) {

	selectStmt := cs.selectReservations().
		Where(goqu.Ex{
			colUserID: userID.String(),
			colBookID: bookID.String(),
			colStatus: []string{
				string(circulation.ReservationStatusPending),
				string(circulation.ReservationStatusReady),
			},
		}).
		Limit(1)

	reservations, err := cs.queryReservations(ctx, runner, selectStmt)
	if err != nil {
		return false, err
	}

	return len(reservations) > 0, nil
}

func (cs CirculationStore) hasReadyReservation(
	ctx context.Context,
	runner dbRunner,
	bookID uuid.UUID,
) (bool, error) {

	selectStmt := cs.selectReservations().
		Where(goqu.Ex{
			colBookID: bookID.String(),
			colStatus: string(circulation.ReservationStatusReady),
		}).
		Limit(1)

	reservations, err := cs.queryReservations(ctx, runner, selectStmt)
	if err != nil {
		return false, err
	}

	return len(reservations) > 0, nil
}

func (cs CirculationStore) selectReservations() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(cs.reservationTableName).
		Select(
			colID, colUserID, colBookID, colReservedAt, colPickupDeadline,
			colStatus, colQueuePosition, colNotes, colMetadata,
		)
}

func (cs CirculationStore) selectPendingForBook(bookID uuid.UUID) *goqu.SelectDataset {
	return cs.selectReservations().
		Where(goqu.Ex{
			colBookID: bookID.String(),
			colStatus: string(circulation.ReservationStatusPending),
		}).
		Order(goqu.I(colQueuePosition).Asc())
}

func (cs CirculationStore) queryReservations(
	ctx context.Context,
	runner dbRunner,
	selectStmt *goqu.SelectDataset,
) ([]circulation.Reservation, error) {

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

	return cs.scanReservations(rows)
}

func (cs CirculationStore) scanReservations(rows adapters.DBRows) ([]circulation.Reservation, error) {
	reservations := make([]circulation.Reservation, 0)
	row := reservationRow{}

	for rows.Next() {
		scanErr := rows.Scan(
			&row.id, &row.userID, &row.bookID, &row.reservedAt, &row.pickupDeadline,
			&row.status, &row.queuePosition, &row.notes, &row.metadata,
		)
		if scanErr != nil {
			cs.logError(logMsgScanRowFailed, scanErr)

			return nil, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
		}

		reservation, mapErr := reservationFromRow(row)
		if mapErr != nil {
			cs.logError(logMsgScanRowFailed, mapErr)

			return nil, errors.Join(circulation.ErrScanningDBRowFailed, mapErr)
		}

		reservations = append(reservations, reservation)
	}

	return reservations, nil
}

func (cs CirculationStore) reservationRecord(reservation circulation.Reservation) (goqu.Record, error) {
	metadataJSON, marshalErr := marshalMetadata(reservation.Metadata)
	if marshalErr != nil {
		cs.logError(logMsgMarshalMetadataFailed, marshalErr, logAttrRsvID, reservation.ID.String())

		return nil, marshalErr
	}

	return goqu.Record{
		colID:             reservation.ID.String(),
		colUserID:         reservation.UserID.String(),
		colBookID:         reservation.BookID.String(),
		colReservedAt:     reservation.ReservedAt,
		colPickupDeadline: reservation.PickupDeadline,
		colStatus:         string(reservation.Status),
		colQueuePosition:  reservation.QueuePosition,
		colNotes:          reservation.Notes,
		colMetadata:       string(metadataJSON),
	}, nil
}

func reservationFromRow(row reservationRow) (circulation.Reservation, error) {
	id, err := uuid.Parse(row.id)
	if err != nil {
		return circulation.Reservation{}, err
	}

	userID, err := uuid.Parse(row.userID)
	if err != nil {
		return circulation.Reservation{}, err
	}

	bookID, err := uuid.Parse(row.bookID)
	if err != nil {
		return circulation.Reservation{}, err
	}

	metadata, err := unmarshalMetadata(row.metadata)
	if err != nil {
		return circulation.Reservation{}, err
	}

	return circulation.Reservation{
		ID:             id,
		UserID:         userID,
		BookID:         bookID,
		ReservedAt:     row.reservedAt,
		PickupDeadline: row.pickupDeadline,
		Status:         circulation.ReservationStatus(row.status),
		QueuePosition:  row.queuePosition,
		Notes:          row.notes,
		Metadata:       metadata,
	}, nil
}
