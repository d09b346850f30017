package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db/models"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
)

// Service exposes read operations for the authenticated member surface.
type Service interface {
	Current(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
}

type service struct {
	repo *Repository
}

// NewService wires the membership read service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	return &service{repo: repo}, nil
}

// Current returns the caller's membership row, NOT_FOUND when none exists.
func (s *service) Current(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	membership, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no membership found")
		}
		return nil, err
	}
	return membership, nil
}
