package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/internal/plans"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
)

// BuildIntentInput is what the order endpoint collects from the caller.
// AmountMajor is only honored for listing upgrades; membership pricing always
// comes from the plan catalog.
type BuildIntentInput struct {
	Kind        enums.PurchaseKind
	PlanID      string
	AmountMajor int64
	PropertyID  *uuid.UUID
	ActorID     uuid.UUID
	Currency    string
}

// OrderIntent is the priced, validated order the gateways receive.
type OrderIntent struct {
	Kind        enums.PurchaseKind
	AmountMinor int64
	Currency    string
	PlanID      string
	PropertyID  *uuid.UUID
	ActorID     uuid.UUID
	Receipt     string
	Notes       map[string]string
}

// IntentBuilder prices purchase requests into provider-ready intents.
type IntentBuilder struct {
	plans plans.Service
	now   func() time.Time
}

// NewIntentBuilder wires the builder with the plan catalog.
func NewIntentBuilder(planSvc plans.Service) (*IntentBuilder, error) {
	if planSvc == nil {
		return nil, fmt.Errorf("plans service required")
	}
	return &IntentBuilder{plans: planSvc, now: time.Now}, nil
}

// Build validates the purchase and resolves the charge amount server-side.
func (b *IntentBuilder) Build(ctx context.Context, input BuildIntentInput) (*OrderIntent, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purchase kind %q", input.Kind))
	}

	intent := &OrderIntent{
		Kind:       input.Kind,
		ActorID:    input.ActorID,
		PropertyID: input.PropertyID,
		Receipt:    b.receipt(input.ActorID),
	}

	switch input.Kind {
	case enums.PurchaseKindMembership:
		plan, err := b.plans.GetPurchasable(ctx, input.PlanID)
		if err != nil {
			return nil, err
		}
		intent.PlanID = plan.ID
		intent.Currency = plan.Currency
		intent.AmountMinor = plan.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	default:
		if input.AmountMajor <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
		}
		if input.PropertyID == nil || *input.PropertyID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id is required for listing upgrades")
		}
		currency := strings.ToUpper(strings.TrimSpace(input.Currency))
		if currency == "" {
			currency = enums.CurrencyINR.String()
		}
		if _, err := enums.ParseCurrency(currency); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		intent.Currency = currency
		intent.AmountMinor = input.AmountMajor * 100
	}

	intent.Notes = buildNotes(intent)
	return intent, nil
}

// receipt builds a short provider-side reference: a slice of the actor id
// plus nanos keeps it unique without leaking the full uuid.
func (b *IntentBuilder) receipt(actorID uuid.UUID) string {
	prefix := strings.ReplaceAll(actorID.String(), "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("rcpt_%s_%d", prefix, b.now().UnixNano())
}

// buildNotes assembles the metadata bag stored on the provider order. The
// webhook and verify paths re-read these notes as the authoritative record of
// what was purchased.
func buildNotes(intent *OrderIntent) map[string]string {
	notes := map[string]string{
		"user_id": intent.ActorID.String(),
		"kind":    intent.Kind.String(),
	}
	if intent.PlanID != "" {
		notes["plan_id"] = intent.PlanID
	}
	if intent.PropertyID != nil {
		notes["property_id"] = intent.PropertyID.String()
	}
	return notes
}
