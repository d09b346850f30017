package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/internal/plans"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
)

type fakePlanService struct {
	getFn func(ctx context.Context, id string) (*models.MembershipPlan, error)
}

func (f *fakePlanService) GetPurchasable(ctx context.Context, id string) (*models.MembershipPlan, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
}

func (f *fakePlanService) List(ctx context.Context, includeHidden bool) ([]models.MembershipPlan, error) {
	return nil, nil
}

func (f *fakePlanService) Create(ctx context.Context, input plans.CreatePlanInput) (*models.MembershipPlan, error) {
	return nil, nil
}

func (f *fakePlanService) Update(ctx context.Context, id string, input plans.UpdatePlanInput) (*models.MembershipPlan, error) {
	return nil, nil
}

func (f *fakePlanService) SetStatus(ctx context.Context, id string, status enums.PlanStatus) error {
	return nil
}

func TestIntentBuilderMembership(t *testing.T) {
	planSvc := &fakePlanService{
		getFn: func(ctx context.Context, id string) (*models.MembershipPlan, error) {
			return &models.MembershipPlan{
				ID:           id,
				Name:         "Gold",
				Price:        decimal.RequireFromString("2499.00"),
				Currency:     "INR",
				DurationDays: 30,
			}, nil
		},
	}
	builder, err := NewIntentBuilder(planSvc)
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}

	actorID := uuid.New()
	intent, err := builder.Build(context.Background(), BuildIntentInput{
		Kind:    enums.PurchaseKindMembership,
		PlanID:  "gold",
		ActorID: actorID,
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if intent.AmountMinor != 249900 {
		t.Fatalf("expected 249900 paise, got %d", intent.AmountMinor)
	}
	if intent.Currency != "INR" {
		t.Fatalf("expected plan currency, got %s", intent.Currency)
	}
	if intent.Notes["user_id"] != actorID.String() {
		t.Fatalf("expected actor in notes, got %q", intent.Notes["user_id"])
	}
	if intent.Notes["kind"] != "membership" || intent.Notes["plan_id"] != "gold" {
		t.Fatalf("unexpected notes: %v", intent.Notes)
	}
	if !strings.HasPrefix(intent.Receipt, "rcpt_") {
		t.Fatalf("unexpected receipt format: %s", intent.Receipt)
	}
}

func TestIntentBuilderIgnoresClientAmountForMemberships(t *testing.T) {
	planSvc := &fakePlanService{
		getFn: func(ctx context.Context, id string) (*models.MembershipPlan, error) {
			return &models.MembershipPlan{ID: id, Price: decimal.RequireFromString("999.00"), Currency: "INR", DurationDays: 30}, nil
		},
	}
	builder, err := NewIntentBuilder(planSvc)
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}

	intent, err := builder.Build(context.Background(), BuildIntentInput{
		Kind:        enums.PurchaseKindMembership,
		PlanID:      "silver",
		AmountMajor: 1, // client lowballing the price
		ActorID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if intent.AmountMinor != 99900 {
		t.Fatalf("catalog price must win, got %d", intent.AmountMinor)
	}
}

func TestIntentBuilderListingUpgrade(t *testing.T) {
	builder, err := NewIntentBuilder(&fakePlanService{})
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}

	propertyID := uuid.New()
	intent, err := builder.Build(context.Background(), BuildIntentInput{
		Kind:        enums.PurchaseKindListingUpgradeFeatured,
		AmountMajor: 500,
		PropertyID:  &propertyID,
		ActorID:     uuid.New(),
		Currency:    "inr",
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if intent.AmountMinor != 50000 {
		t.Fatalf("expected 50000 paise, got %d", intent.AmountMinor)
	}
	if intent.Currency != "INR" {
		t.Fatalf("expected normalized currency, got %s", intent.Currency)
	}
	if intent.Notes["property_id"] != propertyID.String() {
		t.Fatalf("expected property in notes, got %v", intent.Notes)
	}
}

func TestIntentBuilderValidation(t *testing.T) {
	builder, err := NewIntentBuilder(&fakePlanService{})
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}

	propertyID := uuid.New()
	tests := []struct {
		name  string
		input BuildIntentInput
	}{
		{
			name:  "missing actor",
			input: BuildIntentInput{Kind: enums.PurchaseKindMembership, PlanID: "gold"},
		},
		{
			name:  "invalid kind",
			input: BuildIntentInput{Kind: "parking_spot", ActorID: uuid.New()},
		},
		{
			name:  "upgrade without amount",
			input: BuildIntentInput{Kind: enums.PurchaseKindListingUpgradeFeatured, PropertyID: &propertyID, ActorID: uuid.New()},
		},
		{
			name:  "upgrade without property",
			input: BuildIntentInput{Kind: enums.PurchaseKindListingUpgradePremium, AmountMajor: 500, ActorID: uuid.New()},
		},
		{
			name:  "unsupported currency",
			input: BuildIntentInput{Kind: enums.PurchaseKindListingUpgradeFeatured, AmountMajor: 500, PropertyID: &propertyID, ActorID: uuid.New(), Currency: "EUR"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := builder.Build(context.Background(), tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
