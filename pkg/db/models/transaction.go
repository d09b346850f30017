package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/pkg/enums"
)

// Transaction is one row of the append-only payment ledger, one per attempt.
// The (payment_method, provider_txn_id) pair is the natural idempotency key:
// a partial unique index allows at most one completed row for it, while
// failed attempts under the same provider id append freely.
type Transaction struct {
	ID            uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Type          enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Amount        decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string                  `gorm:"column:currency;not null;default:'INR'"`
	Status        enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null;uniqueIndex:idx_transactions_method_txn,where:status = 'completed'"`
	ProviderTxnID string                  `gorm:"column:provider_txn_id;not null;uniqueIndex:idx_transactions_method_txn"`
	Description   *string                 `gorm:"column:description"`
	Metadata      json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
