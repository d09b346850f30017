package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db/models"
)

// Repository is the thin read surface the payments core needs for receipts.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID retrieves a user row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
