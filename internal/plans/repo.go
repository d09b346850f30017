package plans

import (
	"context"

	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

// Repository exposes membership plan persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID retrieves a plan regardless of status.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.MembershipPlan, error) {
	var plan models.MembershipPlan
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindActive retrieves a purchasable plan.
func (r *Repository) FindActive(ctx context.Context, id string) (*models.MembershipPlan, error) {
	var plan models.MembershipPlan
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.PlanStatusActive).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns plans ordered by price, optionally including hidden ones.
func (r *Repository) List(ctx context.Context, includeHidden bool) ([]models.MembershipPlan, error) {
	query := r.db.WithContext(ctx).Model(&models.MembershipPlan{})
	if !includeHidden {
		query = query.Where("status = ?", enums.PlanStatusActive)
	}
	var plans []models.MembershipPlan
	if err := query.Order("price ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// Create persists a new plan.
func (r *Repository) Create(ctx context.Context, plan *models.MembershipPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

// Update persists mutable plan fields.
func (r *Repository) Update(ctx context.Context, plan *models.MembershipPlan) error {
	return r.db.WithContext(ctx).
		Model(&models.MembershipPlan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]any{
			"name":          plan.Name,
			"status":        plan.Status,
			"price":         plan.Price,
			"currency":      plan.Currency,
			"duration_days": plan.DurationDays,
			"max_listings":  plan.MaxListings,
			"features":      plan.Features,
			"is_default":    plan.IsDefault,
		}).Error
}

// SetStatus flips a plan between active and hidden.
func (r *Repository) SetStatus(ctx context.Context, id string, status enums.PlanStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.MembershipPlan{}).
		Where("id = ?", id).
		Update("status", status).Error
}
