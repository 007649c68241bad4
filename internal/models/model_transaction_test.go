package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/internal/platform/db/dbtest"
	"github.com/fatflowers/storepay/pkg/tool"
	"github.com/fatflowers/storepay/pkg/types"
)

func newTransaction(status types.TransactionStatus) *models.Transaction {
	ref := tool.GenerateTempOrderRef()
	return &models.Transaction{
		ID:           tool.GenerateUUIDV7(),
		OrderRef:     ref,
		TempOrderRef: &ref,
		Provider:     types.PaymentProviderMpesa,
		Amount:       100,
		Currency:     "KES",
		Status:       status,
	}
}

func TestTransactionMapUpdateOnEmptyModel(t *testing.T) {
	gdb := dbtest.NewSQLite(t)
	txn := newTransaction("pending")
	require.NoError(t, gdb.Create(txn).Error)
	require.Equal(t, types.TransactionStatusPending, txn.Status)
	require.Equal(t, types.SubmissionStatusNotSubmitted, txn.SubmissionStatus)

	res := gdb.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		Updates(map[string]any{"status": types.TransactionStatusFailed, "submit_attempts": 2})
	require.NoError(t, res.Error)
	require.EqualValues(t, 1, res.RowsAffected)

	var got models.Transaction
	require.NoError(t, gdb.Where("id = ?", txn.ID).First(&got).Error)
	require.Equal(t, types.TransactionStatusFailed, got.Status)
	require.Equal(t, 2, got.SubmitAttempts)
	require.Equal(t, types.SubmissionStatusNotSubmitted, got.SubmissionStatus)
}

func TestTransactionCreateRejectsBadStatus(t *testing.T) {
	gdb := dbtest.NewSQLite(t)
	require.Error(t, gdb.Create(newTransaction("")).Error)
	require.Error(t, gdb.Create(newTransaction("settled")).Error)
}
