package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

// Service defines operations that record payment attempts.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.Transaction, error)
	MarkRefunded(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a ledger row requires.
// AmountMinor is in minor units (paise/cents); the stored amount is major.
type RecordInput struct {
	UserID        uuid.UUID               `json:"user_id"`
	Type          enums.TransactionType   `json:"type"`
	AmountMinor   int64                   `json:"amount_minor"`
	Currency      string                  `json:"currency"`
	Status        enums.TransactionStatus `json:"status"`
	PaymentMethod enums.PaymentMethod     `json:"payment_method"`
	ProviderTxnID string                  `json:"provider_txn_id"`
	Description   *string                 `json:"description"`
	Metadata      json.RawMessage         `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends one row per payment attempt. Replaying a completed provider
// transaction returns the previously written row instead of a duplicate;
// failed attempts always append, so a later success under the same provider
// id still lands.
func (s *service) Record(ctx context.Context, input RecordInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid transaction type %q", input.Type)
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status %q", input.Status)
	}
	if !input.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("invalid payment method %q", input.PaymentMethod)
	}
	if input.ProviderTxnID == "" {
		return nil, fmt.Errorf("provider transaction id is required")
	}
	if input.AmountMinor < 0 {
		return nil, fmt.Errorf("amount must not be negative, got %d", input.AmountMinor)
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyINR.String()
	}

	txn := &models.Transaction{
		UserID:        input.UserID,
		Type:          input.Type,
		Amount:        decimal.NewFromInt(input.AmountMinor).Div(decimal.NewFromInt(100)),
		Currency:      currency,
		Status:        input.Status,
		PaymentMethod: input.PaymentMethod,
		ProviderTxnID: input.ProviderTxnID,
		Description:   input.Description,
		Metadata:      input.Metadata,
	}

	created, err := s.repo.Insert(ctx, txn)
	if err != nil {
		return nil, err
	}
	if created {
		return txn, nil
	}
	return s.repo.FindByProviderTxn(ctx, input.PaymentMethod, input.ProviderTxnID)
}

// MarkRefunded flips a completed row to refunded. Rows in any other state
// are left untouched.
func (s *service) MarkRefunded(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
	if !method.IsValid() {
		return nil, fmt.Errorf("invalid payment method %q", method)
	}
	if providerTxnID == "" {
		return nil, fmt.Errorf("provider transaction id is required")
	}

	txn, err := s.repo.FindByProviderTxn(ctx, method, providerTxnID)
	if err != nil {
		return nil, err
	}
	if txn.Status != enums.TransactionStatusCompleted {
		return txn, nil
	}
	if err := s.repo.UpdateStatus(ctx, txn.ID, enums.TransactionStatusRefunded); err != nil {
		return nil, err
	}
	txn.Status = enums.TransactionStatusRefunded
	return txn, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}
