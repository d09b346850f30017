package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/pkg/db"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
)

// Service defines the plan catalog operations.
type Service interface {
	GetPurchasable(ctx context.Context, id string) (*models.MembershipPlan, error)
	List(ctx context.Context, includeHidden bool) ([]models.MembershipPlan, error)
	Create(ctx context.Context, input CreatePlanInput) (*models.MembershipPlan, error)
	Update(ctx context.Context, id string, input UpdatePlanInput) (*models.MembershipPlan, error)
	SetStatus(ctx context.Context, id string, status enums.PlanStatus) error
}

type service struct {
	repo *Repository
}

// CreatePlanInput carries the fields an admin supplies for a new plan.
type CreatePlanInput struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	Currency     string
	DurationDays int
	MaxListings  int
	Features     []string
	IsDefault    bool
}

// UpdatePlanInput carries optional field updates; nil means leave as-is.
type UpdatePlanInput struct {
	Name         *string
	Price        *decimal.Decimal
	Currency     *string
	DurationDays *int
	MaxListings  *int
	Features     []string
	IsDefault    *bool
}

// NewService wires the plan service with the provided repository.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	return &service{repo: repo}, nil
}

// GetPurchasable returns an active plan or a NOT_FOUND error. Hidden plans
// are not purchasable even when their id is known.
func (s *service) GetPurchasable(ctx context.Context, id string) (*models.MembershipPlan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindActive(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, err
	}
	return plan, nil
}

func (s *service) List(ctx context.Context, includeHidden bool) ([]models.MembershipPlan, error) {
	return s.repo.List(ctx, includeHidden)
}

func (s *service) Create(ctx context.Context, input CreatePlanInput) (*models.MembershipPlan, error) {
	id := strings.TrimSpace(strings.ToLower(input.ID))
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan price must not be negative")
	}
	if input.DurationDays < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan duration must be at least one day")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = enums.CurrencyINR.String()
	}
	if _, err := enums.ParseCurrency(currency); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}

	plan := &models.MembershipPlan{
		ID:           id,
		Name:         input.Name,
		Status:       enums.PlanStatusActive,
		Price:        input.Price,
		Currency:     currency,
		DurationDays: input.DurationDays,
		MaxListings:  input.MaxListings,
		Features:     pq.StringArray(input.Features),
		IsDefault:    input.IsDefault,
	}

	if err := s.repo.Create(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "plan already exists")
		}
		return nil, err
	}
	return plan, nil
}

func (s *service) Update(ctx context.Context, id string, input UpdatePlanInput) (*models.MembershipPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
		}
		plan.Name = *input.Name
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan price must not be negative")
		}
		plan.Price = *input.Price
	}
	if input.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*input.Currency))
		if _, err := enums.ParseCurrency(currency); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		plan.Currency = currency
	}
	if input.DurationDays != nil {
		if *input.DurationDays < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan duration must be at least one day")
		}
		plan.DurationDays = *input.DurationDays
	}
	if input.MaxListings != nil {
		plan.MaxListings = *input.MaxListings
	}
	if input.Features != nil {
		plan.Features = pq.StringArray(input.Features)
	}
	if input.IsDefault != nil {
		plan.IsDefault = *input.IsDefault
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) SetStatus(ctx context.Context, id string, status enums.PlanStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid plan status %q", status))
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return err
	}
	return s.repo.SetStatus(ctx, id, status)
}
