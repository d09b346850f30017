package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/gharbazaar/backend/internal/ledger"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
)

type fakeLedger struct {
	recorded []ledger.RecordInput
	err      error
}

func (f *fakeLedger) Record(ctx context.Context, input ledger.RecordInput) (*models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.recorded = append(f.recorded, input)
	return &models.Transaction{ID: uuid.New(), UserID: input.UserID, Status: input.Status}, nil
}

func (f *fakeLedger) MarkRefunded(ctx context.Context, method enums.PaymentMethod, providerTxnID string) (*models.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

type fakeEntitlements struct {
	owner      uuid.UUID
	ownerErr   error
	activated  []string
	extended   []string
	cancelled  []string
	halted     []string
	membership []string
	upgrades   []uuid.UUID
}

func (f *fakeEntitlements) ApplyMembership(ctx context.Context, userID uuid.UUID, planID string, providerSubscriptionID *string) (*models.Membership, error) {
	f.membership = append(f.membership, planID)
	return &models.Membership{UserID: userID, PlanID: planID}, nil
}

func (f *fakeEntitlements) ApplyListingUpgrade(ctx context.Context, propertyID uuid.UUID, tier enums.ListingTier) error {
	f.upgrades = append(f.upgrades, propertyID)
	return nil
}

func (f *fakeEntitlements) ActivateSubscription(ctx context.Context, userID uuid.UUID, planID, subscriptionID string, currentEnd time.Time) error {
	f.activated = append(f.activated, subscriptionID)
	return nil
}

func (f *fakeEntitlements) ExtendSubscription(ctx context.Context, subscriptionID string, currentEnd time.Time) error {
	f.extended = append(f.extended, subscriptionID)
	return nil
}

func (f *fakeEntitlements) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}

func (f *fakeEntitlements) HaltSubscription(ctx context.Context, subscriptionID string) error {
	f.halted = append(f.halted, subscriptionID)
	return nil
}

func (f *fakeEntitlements) SubscriptionOwner(ctx context.Context, subscriptionID string) (uuid.UUID, error) {
	if f.ownerErr != nil {
		return uuid.Nil, f.ownerErr
	}
	return f.owner, nil
}

func newTestService(t *testing.T, ledgerSvc *fakeLedger, entitlementSvc *fakeEntitlements) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{Ledger: ledgerSvc, Entitlements: entitlementSvc})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func stripeEvent(t *testing.T, eventType string, payload string) *stripe.Event {
	t.Helper()

	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func TestHandleCheckoutCompletedGrantsMembership(t *testing.T) {
	userID := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	payload := fmt.Sprintf(`{
		"id": "cs_test_123",
		"amount_total": 249900,
		"currency": "inr",
		"payment_intent": {"id": "pi_test_456"},
		"metadata": {"user_id": %q, "kind": "membership", "plan_id": "gold"}
	}`, userID.String())

	if err := svc.HandleEvent(context.Background(), stripeEvent(t, "checkout.session.completed", payload)); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}

	if len(ledgerSvc.recorded) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(ledgerSvc.recorded))
	}
	row := ledgerSvc.recorded[0]
	if row.ProviderTxnID != "pi_test_456" {
		t.Fatalf("expected payment intent id as provider txn, got %s", row.ProviderTxnID)
	}
	if row.AmountMinor != 249900 || row.Currency != "INR" {
		t.Fatalf("unexpected ledger row: %+v", row)
	}
	if len(entitlementSvc.membership) != 1 || entitlementSvc.membership[0] != "gold" {
		t.Fatalf("expected gold membership grant, got %v", entitlementSvc.membership)
	}
}

func TestHandleCheckoutCompletedWithoutMetadataIsAcknowledged(t *testing.T) {
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	payload := `{"id": "cs_test_123", "amount_total": 100, "currency": "inr", "metadata": {}}`
	if err := svc.HandleEvent(context.Background(), stripeEvent(t, "checkout.session.completed", payload)); err != nil {
		t.Fatalf("events without attribution must be acknowledged, got %v", err)
	}
	if len(ledgerSvc.recorded) != 0 || len(entitlementSvc.membership) != 0 {
		t.Fatal("events without attribution must not write anything")
	}
}

func TestHandleInvoicePaidExtendsAndRecords(t *testing.T) {
	owner := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{owner: owner}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	periodEnd := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	payload := fmt.Sprintf(`{
		"id": "in_test_123",
		"subscription": "sub_test_456",
		"period_end": %d,
		"amount_paid": 249900,
		"currency": "inr"
	}`, periodEnd.Unix())

	if err := svc.HandleEvent(context.Background(), stripeEvent(t, "invoice.payment_succeeded", payload)); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(entitlementSvc.extended) != 1 || entitlementSvc.extended[0] != "sub_test_456" {
		t.Fatalf("expected subscription extension, got %v", entitlementSvc.extended)
	}
	if len(ledgerSvc.recorded) != 1 || ledgerSvc.recorded[0].UserID != owner {
		t.Fatalf("expected renewal row for owner, got %+v", ledgerSvc.recorded)
	}
}

func TestHandleInvoiceFailedRecordsFailedRowOnly(t *testing.T) {
	owner := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{owner: owner}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	payload := `{
		"id": "in_test_123",
		"subscription": "sub_test_456",
		"amount_due": 249900,
		"currency": "inr"
	}`
	if err := svc.HandleEvent(context.Background(), stripeEvent(t, "invoice.payment_failed", payload)); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(ledgerSvc.recorded) != 1 || ledgerSvc.recorded[0].Status != enums.TransactionStatusFailed {
		t.Fatalf("expected failed row, got %+v", ledgerSvc.recorded)
	}
	// A single failed invoice never halts; subscription status updates do.
	if len(entitlementSvc.halted) != 0 {
		t.Fatal("failed invoice must not halt the membership")
	}
}

func TestHandleSubscriptionSyncStatusTransitions(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		status string
		check  func(t *testing.T, f *fakeEntitlements)
	}{
		{"active", func(t *testing.T, f *fakeEntitlements) {
			if len(f.activated) != 1 {
				t.Fatalf("expected activation, got %+v", f)
			}
		}},
		{"past_due", func(t *testing.T, f *fakeEntitlements) {
			if len(f.halted) != 1 {
				t.Fatalf("expected halt, got %+v", f)
			}
		}},
		{"unpaid", func(t *testing.T, f *fakeEntitlements) {
			if len(f.halted) != 1 {
				t.Fatalf("expected halt, got %+v", f)
			}
		}},
		{"canceled", func(t *testing.T, f *fakeEntitlements) {
			if len(f.cancelled) != 1 {
				t.Fatalf("expected cancel, got %+v", f)
			}
		}},
		{"incomplete", func(t *testing.T, f *fakeEntitlements) {
			if len(f.activated)+len(f.halted)+len(f.cancelled) != 0 {
				t.Fatalf("expected no action, got %+v", f)
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			entitlementSvc := &fakeEntitlements{}
			svc := newTestService(t, &fakeLedger{}, entitlementSvc)

			payload := fmt.Sprintf(`{
				"id": "sub_test_456",
				"status": %q,
				"current_period_end": %d,
				"metadata": {"user_id": %q, "plan_id": "gold"}
			}`, tc.status, time.Now().AddDate(0, 1, 0).Unix(), userID.String())

			if err := svc.HandleEvent(context.Background(), stripeEvent(t, "customer.subscription.updated", payload)); err != nil {
				t.Fatalf("HandleEvent error: %v", err)
			}
			tc.check(t, entitlementSvc)
		})
	}
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, &fakeLedger{}, entitlementSvc)

	payload := `{"id": "sub_test_456", "status": "canceled"}`
	if err := svc.HandleEvent(context.Background(), stripeEvent(t, "customer.subscription.deleted", payload)); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(entitlementSvc.cancelled) != 1 || entitlementSvc.cancelled[0] != "sub_test_456" {
		t.Fatalf("expected cancellation, got %v", entitlementSvc.cancelled)
	}
}

func TestHandleEventUnknownIsAcknowledged(t *testing.T) {
	ledgerSvc := &fakeLedger{}
	svc := newTestService(t, ledgerSvc, &fakeEntitlements{})

	if err := svc.HandleEvent(context.Background(), stripeEvent(t, "charge.refunded", `{}`)); err != nil {
		t.Fatalf("unknown events must be acknowledged, got %v", err)
	}
	if len(ledgerSvc.recorded) != 0 {
		t.Fatal("unknown events must not write anything")
	}
}
