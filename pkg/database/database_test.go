package database_test

import (
	"context"
	"testing"

	"github.com/careops/careops-backend/pkg/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_CommitsOnSuccess(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE transfers SET status").
		WillReturnResult(testutil.MockResult(1))
	mockDB.ExpectCommit()

	err := mockDB.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE transfers SET status = $1", "COMPLETED")
		return err
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	sentinel := assert.AnError
	err := mockDB.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	mockDB.ExpectationsWereMet(t)
}
