package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  provider_txn_id TEXT NOT NULL,
  description TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(transactions).Error)
	require.NoError(t, db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_method_txn
  ON transactions (payment_method, provider_txn_id) WHERE status = 'completed';`).Error)
	return db
}

func newLedgerRow(userID uuid.UUID, providerTxnID string) *models.Transaction {
	return &models.Transaction{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          enums.TransactionTypeMembership,
		Currency:      "INR",
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodRazorpay,
		ProviderTxnID: providerTxnID,
	}
}

func TestRepositoryInsertIsIdempotent(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	providerTxnID := "pay_" + uuid.NewString()

	created, err := repo.Insert(ctx, newLedgerRow(userID, providerTxnID))
	require.NoError(t, err)
	assert.True(t, created)

	// Same provider transaction again, as a webhook replay would deliver it.
	created, err = repo.Insert(ctx, newLedgerRow(userID, providerTxnID))
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("provider_txn_id = ?", providerTxnID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryInsertCompletedAfterFailedAttempt(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	providerTxnID := "in_" + uuid.NewString()

	failedRow := newLedgerRow(userID, providerTxnID)
	failedRow.Status = enums.TransactionStatusFailed
	created, err := repo.Insert(ctx, failedRow)
	require.NoError(t, err)
	require.True(t, created)

	// The provider retries the charge under the same id; the success must
	// land next to the failed attempt, not be swallowed by it.
	created, err = repo.Insert(ctx, newLedgerRow(userID, providerTxnID))
	require.NoError(t, err)
	assert.True(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("provider_txn_id = ?", providerTxnID).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)

	found, err := repo.FindByProviderTxn(ctx, enums.PaymentMethodRazorpay, providerTxnID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, found.Status)
}

func TestRepositoryInsertAllowsRepeatedFailedAttempts(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	providerTxnID := "in_" + uuid.NewString()

	for i := 0; i < 2; i++ {
		row := newLedgerRow(userID, providerTxnID)
		row.Status = enums.TransactionStatusFailed
		created, err := repo.Insert(ctx, row)
		require.NoError(t, err)
		assert.True(t, created)
	}

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("provider_txn_id = ?", providerTxnID).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestServiceRecordFailedThenCompletedSameTxn(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	providerTxnID := "in_" + uuid.NewString()

	input := RecordInput{
		UserID:        userID,
		Type:          enums.TransactionTypeMembership,
		AmountMinor:   249900,
		Currency:      "INR",
		Status:        enums.TransactionStatusFailed,
		PaymentMethod: enums.PaymentMethodStripe,
		ProviderTxnID: providerTxnID,
	}
	failed, err := svc.Record(ctx, input)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusFailed, failed.Status)

	input.Status = enums.TransactionStatusCompleted
	completed, err := svc.Record(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, completed.Status)
	assert.Equal(t, "2499", completed.Amount.String())

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("provider_txn_id = ?", providerTxnID).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRepositoryInsertAllowsSameTxnIDAcrossMethods(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	providerTxnID := "txn_" + uuid.NewString()

	razorpayRow := newLedgerRow(uuid.New(), providerTxnID)
	created, err := repo.Insert(ctx, razorpayRow)
	require.NoError(t, err)
	assert.True(t, created)

	stripeRow := newLedgerRow(uuid.New(), providerTxnID)
	stripeRow.PaymentMethod = enums.PaymentMethodStripe
	created, err = repo.Insert(ctx, stripeRow)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRepositoryFindAndUpdateStatus(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := newLedgerRow(uuid.New(), "pay_"+uuid.NewString())
	created, err := repo.Insert(ctx, row)
	require.NoError(t, err)
	require.True(t, created)

	found, err := repo.FindByProviderTxn(ctx, enums.PaymentMethodRazorpay, row.ProviderTxnID)
	require.NoError(t, err)
	assert.Equal(t, row.ID, found.ID)
	assert.Equal(t, enums.TransactionStatusCompleted, found.Status)

	require.NoError(t, repo.UpdateStatus(ctx, row.ID, enums.TransactionStatusRefunded))

	found, err = repo.FindByProviderTxn(ctx, enums.PaymentMethodRazorpay, row.ProviderTxnID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusRefunded, found.Status)
}

func TestRepositoryListByUser(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		created, err := repo.Insert(ctx, newLedgerRow(userID, "pay_"+uuid.NewString()))
		require.NoError(t, err)
		require.True(t, created)
	}
	_, err := repo.Insert(ctx, newLedgerRow(uuid.New(), "pay_"+uuid.NewString()))
	require.NoError(t, err)

	rows, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, userID, row.UserID)
	}
}
