package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

type fakeRepository struct {
	insertFn     func(ctx context.Context, txn *models.Transaction) (bool, error)
	findFn       func(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error)
	updateStatus func(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Insert(ctx context.Context, txn *models.Transaction) (bool, error) {
	if f.insertFn != nil {
		return f.insertFn(ctx, txn)
	}
	return true, nil
}

func (f *fakeRepository) FindByProviderTxn(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
	if f.findFn != nil {
		return f.findFn(ctx, method, providerTxnID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	if f.updateStatus != nil {
		return f.updateStatus(ctx, id, status)
	}
	return nil
}

func TestService_RecordConvertsMinorUnits(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var inserted *models.Transaction
	repo.insertFn = func(ctx context.Context, txn *models.Transaction) (bool, error) {
		inserted = txn
		return true, nil
	}

	txn, err := svc.Record(context.Background(), RecordInput{
		UserID:        uuid.New(),
		Type:          enums.TransactionTypeMembership,
		AmountMinor:   99900,
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodRazorpay,
		ProviderTxnID: "pay_test_123",
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if inserted == nil {
		t.Fatal("expected a row to be inserted")
	}
	if !txn.Amount.Equal(decimal.RequireFromString("999")) {
		t.Fatalf("expected amount 999.00, got %s", txn.Amount)
	}
	if txn.Currency != "INR" {
		t.Fatalf("expected default currency INR, got %s", txn.Currency)
	}
	if txn.ProviderTxnID != "pay_test_123" {
		t.Fatalf("unexpected provider txn id %s", txn.ProviderTxnID)
	}
}

func TestService_RecordReplayReturnsExistingRow(t *testing.T) {
	existing := &models.Transaction{
		ID:            uuid.New(),
		ProviderTxnID: "pay_test_123",
		Status:        enums.TransactionStatusCompleted,
	}
	repo := &fakeRepository{
		insertFn: func(ctx context.Context, txn *models.Transaction) (bool, error) {
			return false, nil
		},
		findFn: func(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
			return existing, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	txn, err := svc.Record(context.Background(), RecordInput{
		UserID:        uuid.New(),
		Type:          enums.TransactionTypeMembership,
		AmountMinor:   99900,
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodRazorpay,
		ProviderTxnID: "pay_test_123",
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if txn != existing {
		t.Fatal("expected the previously written row on replay")
	}
}

func TestService_RecordValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	base := RecordInput{
		UserID:        uuid.New(),
		Type:          enums.TransactionTypeMembership,
		AmountMinor:   100,
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodRazorpay,
		ProviderTxnID: "pay_test_123",
	}

	tests := []struct {
		name   string
		mutate func(in *RecordInput)
	}{
		{"missing user", func(in *RecordInput) { in.UserID = uuid.Nil }},
		{"invalid type", func(in *RecordInput) { in.Type = "rent" }},
		{"invalid status", func(in *RecordInput) { in.Status = "maybe" }},
		{"invalid method", func(in *RecordInput) { in.PaymentMethod = "cash" }},
		{"missing provider txn id", func(in *RecordInput) { in.ProviderTxnID = "" }},
		{"negative amount", func(in *RecordInput) { in.AmountMinor = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := base
			tc.mutate(&input)
			if _, err := svc.Record(context.Background(), input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestService_MarkRefunded(t *testing.T) {
	completed := &models.Transaction{
		ID:     uuid.New(),
		Status: enums.TransactionStatusCompleted,
	}
	var updatedTo enums.TransactionStatus
	repo := &fakeRepository{
		findFn: func(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
			return completed, nil
		},
		updateStatus: func(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
			updatedTo = status
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	txn, err := svc.MarkRefunded(context.Background(), enums.PaymentMethodStripe, "pi_test_123")
	if err != nil {
		t.Fatalf("MarkRefunded error: %v", err)
	}
	if updatedTo != enums.TransactionStatusRefunded {
		t.Fatalf("expected status update to refunded, got %s", updatedTo)
	}
	if txn.Status != enums.TransactionStatusRefunded {
		t.Fatalf("expected returned row to be refunded, got %s", txn.Status)
	}
}

func TestService_MarkRefundedLeavesFailedRows(t *testing.T) {
	failed := &models.Transaction{
		ID:     uuid.New(),
		Status: enums.TransactionStatusFailed,
	}
	repo := &fakeRepository{
		findFn: func(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
			return failed, nil
		},
		updateStatus: func(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
			t.Fatal("failed rows must not be updated")
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	txn, err := svc.MarkRefunded(context.Background(), enums.PaymentMethodStripe, "pi_test_123")
	if err != nil {
		t.Fatalf("MarkRefunded error: %v", err)
	}
	if txn.Status != enums.TransactionStatusFailed {
		t.Fatalf("expected status to stay failed, got %s", txn.Status)
	}
}
