package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/testutil/postgresengine/config"
	"github.com/AntonStoeckl/library-circulation-go/testutil/postgresengine/helper"
	"github.com/AntonStoeckl/library-circulation-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_Logging_RecordsQueriesAndOperations(t *testing.T) {
	// setup
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
	require.NoError(t, err, "error connecting to DB pool in test setup")
	defer connPool.Close()

	logSpy := helper.NewLogHandlerSpy(false)
	logger := slog.New(logSpy)

	store, err := postgresengine.NewCirculationStoreFromPGXPool(connPool, postgresengine.WithLogger(logger))
	require.NoError(t, err, "error creating the circulation store")

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	postgreswrapper.CreateTables(t, wrapper)
	postgreswrapper.CleanUp(t, wrapper)

	// arrange
	borrowedAt := time.Unix(1700000000, 0).UTC()
	loan, buildErr := circulation.BuildLoan(uuid.New(), uuid.New(), uuid.New(), borrowedAt, time.Time{})
	require.NoError(t, buildErr)

	// act
	err = store.WithinTx(ctxWithTimeout, func(ctx context.Context, tx circulation.TxStorage) error {
		return tx.InsertLoan(ctx, loan)
	})
	require.NoError(t, err, "error inserting the loan")

	// assert
	assert.True(t,
		logSpy.HasLogWithAttr(slog.LevelDebug, "executed sql", "duration_ms"),
		"expected a debug log for the executed sql with timing")
	assert.True(t,
		logSpy.HasLog(slog.LevelInfo, "circulation store operation: loan inserted"),
		"expected an info log for the insert operation")
}
