package memberships

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

// Repository exposes membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes the membership for a user in a single statement. The unique
// index on user_id means a concurrent double-grant resolves to one row with
// the later writer's dates.
func (r *Repository) Upsert(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"plan_id":    gorm.Expr("excluded.plan_id"),
				"start_date": gorm.Expr("excluded.start_date"),
				"end_date":   gorm.Expr("excluded.end_date"),
				"status":     gorm.Expr("excluded.status"),
				// a one-off purchase carries no subscription id; keep the
				// existing link so recurring events still find the row
				"provider_subscription_id": gorm.Expr("COALESCE(excluded.provider_subscription_id, memberships.provider_subscription_id)"),
				"updated_at":               gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(membership).Error
}

// FindByUserID retrieves the membership row for a user.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindByProviderSubscriptionID retrieves the membership tied to a gateway subscription.
func (r *Repository) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("provider_subscription_id = ?", subscriptionID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// UpdateStatusBySubscription sets the status of the membership tied to a subscription.
func (r *Repository) UpdateStatusBySubscription(ctx context.Context, subscriptionID string, status enums.MembershipStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("provider_subscription_id = ?", subscriptionID).
		Update("status", status).Error
}

// ExtendBySubscription moves the end date of the membership tied to a
// subscription. Status is reasserted active because a renewal supersedes a
// prior halt.
func (r *Repository) ExtendBySubscription(ctx context.Context, subscriptionID string, endDate time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("provider_subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"end_date": endDate,
			"status":   enums.MembershipStatusActive,
		}).Error
}
