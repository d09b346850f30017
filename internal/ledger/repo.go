package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

// Repository manages persistence for the transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, txn *models.Transaction) (bool, error)
	FindByProviderTxn(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert appends a ledger row. The partial unique index on
// (payment_method, provider_txn_id) covers completed rows only, so replaying
// a completed payment is a no-op while failed attempts append one row each.
// The boolean reports whether a row was actually written.
func (r *repository) Insert(ctx context.Context, txn *models.Transaction) (bool, error) {
	tx := r.db.WithContext(ctx)
	if txn.Status == enums.TransactionStatusCompleted {
		tx = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "payment_method"}, {Name: "provider_txn_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Name: "status"}, Value: enums.TransactionStatusCompleted.String()},
			}},
			DoNothing: true,
		})
	}
	result := tx.Create(txn)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByProviderTxn returns the row for a provider transaction. Failed
// attempts may share the id with the completed row; the completed row wins.
func (r *repository) FindByProviderTxn(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND provider_txn_id = ?", method, providerTxnID).
		Order("CASE WHEN status = 'completed' THEN 0 ELSE 1 END, created_at DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}
