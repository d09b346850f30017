package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

// Repository exposes the slice of property persistence the payments core needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID retrieves a property row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&property).Error
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// SetListingTier promotes a property to the given tier. Re-applying the same
// tier is a no-op at the row level.
func (r *Repository) SetListingTier(ctx context.Context, id uuid.UUID, tier enums.ListingTier) error {
	return r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ?", id).
		Update("listing_tier", tier).Error
}
