package razorpaywebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

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

type entitlementCall struct {
	op             string
	userID         uuid.UUID
	planID         string
	subscriptionID string
	propertyID     uuid.UUID
	tier           enums.ListingTier
	currentEnd     time.Time
}

type fakeEntitlements struct {
	calls []entitlementCall
	err   error
}

func (f *fakeEntitlements) ApplyMembership(ctx context.Context, userID uuid.UUID, planID string, providerSubscriptionID *string) (*models.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, entitlementCall{op: "membership", userID: userID, planID: planID})
	return &models.Membership{UserID: userID, PlanID: planID}, nil
}

func (f *fakeEntitlements) ApplyListingUpgrade(ctx context.Context, propertyID uuid.UUID, tier enums.ListingTier) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, entitlementCall{op: "upgrade", propertyID: propertyID, tier: tier})
	return nil
}

func (f *fakeEntitlements) ActivateSubscription(ctx context.Context, userID uuid.UUID, planID, subscriptionID string, currentEnd time.Time) error {
	f.calls = append(f.calls, entitlementCall{op: "activate", userID: userID, planID: planID, subscriptionID: subscriptionID, currentEnd: currentEnd})
	return f.err
}

func (f *fakeEntitlements) ExtendSubscription(ctx context.Context, subscriptionID string, currentEnd time.Time) error {
	f.calls = append(f.calls, entitlementCall{op: "extend", subscriptionID: subscriptionID, currentEnd: currentEnd})
	return f.err
}

func (f *fakeEntitlements) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.calls = append(f.calls, entitlementCall{op: "cancel", subscriptionID: subscriptionID})
	return f.err
}

func (f *fakeEntitlements) HaltSubscription(ctx context.Context, subscriptionID string) error {
	f.calls = append(f.calls, entitlementCall{op: "halt", subscriptionID: subscriptionID})
	return f.err
}

func (f *fakeEntitlements) SubscriptionOwner(ctx context.Context, subscriptionID string) (uuid.UUID, error) {
	return uuid.Nil, errors.New("not implemented")
}

func newTestService(t *testing.T, ledgerSvc *fakeLedger, entitlementSvc *fakeEntitlements) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{Ledger: ledgerSvc, Entitlements: entitlementSvc})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestHandleEventUnknownIsAcknowledged(t *testing.T) {
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	if err := svc.HandleEvent(context.Background(), &Event{Event: "refund.created"}); err != nil {
		t.Fatalf("unknown events must be acknowledged, got %v", err)
	}
	if len(ledgerSvc.recorded) != 0 || len(entitlementSvc.calls) != 0 {
		t.Fatal("unknown events must not write anything")
	}
}

func TestHandlePaymentCapturedGrantsMembership(t *testing.T) {
	userID := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	event := &Event{
		Event: "payment.captured",
		Payload: Payload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:       "pay_test_456",
				OrderID:  "order_test_123",
				Amount:   249900,
				Currency: "INR",
				Status:   "captured",
				Notes: map[string]string{
					"user_id": userID.String(),
					"kind":    "membership",
					"plan_id": "gold",
				},
			}},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}

	if len(ledgerSvc.recorded) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(ledgerSvc.recorded))
	}
	row := ledgerSvc.recorded[0]
	if row.UserID != userID || row.AmountMinor != 249900 || row.Status != enums.TransactionStatusCompleted {
		t.Fatalf("unexpected ledger row: %+v", row)
	}
	if row.ProviderTxnID != "pay_test_456" {
		t.Fatalf("unexpected provider txn id %s", row.ProviderTxnID)
	}

	if len(entitlementSvc.calls) != 1 || entitlementSvc.calls[0].op != "membership" || entitlementSvc.calls[0].planID != "gold" {
		t.Fatalf("expected membership grant, got %+v", entitlementSvc.calls)
	}
}

func TestHandlePaymentCapturedFillsNotesFromOrder(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	event := &Event{
		Event: "order.paid",
		Payload: Payload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:      "pay_test_789",
				OrderID: "order_test_123",
				Amount:  50000,
			}},
			Order: &OrderWrapper{Entity: OrderEntity{
				ID: "order_test_123",
				Notes: map[string]string{
					"user_id":     userID.String(),
					"kind":        "listing_upgrade_featured",
					"property_id": propertyID.String(),
				},
			}},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(entitlementSvc.calls) != 1 || entitlementSvc.calls[0].op != "upgrade" || entitlementSvc.calls[0].propertyID != propertyID {
		t.Fatalf("expected listing upgrade from order notes, got %+v", entitlementSvc.calls)
	}
	if entitlementSvc.calls[0].tier != enums.ListingTierFeatured {
		t.Fatalf("unexpected tier %s", entitlementSvc.calls[0].tier)
	}
}

func TestHandlePaymentCapturedWithoutAttributionIsAcknowledged(t *testing.T) {
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	event := &Event{
		Event: "payment.captured",
		Payload: Payload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:     "pay_test_456",
				Amount: 100,
				Notes:  map[string]string{"campaign": "diwali"},
			}},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("events without attribution must be acknowledged, got %v", err)
	}
	if len(ledgerSvc.recorded) != 0 || len(entitlementSvc.calls) != 0 {
		t.Fatal("events without attribution must not write anything")
	}
}

func TestHandlePaymentFailedRecordsFailedRowOnly(t *testing.T) {
	userID := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	event := &Event{
		Event: "payment.failed",
		Payload: Payload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:       "pay_test_456",
				Amount:   99900,
				Currency: "INR",
				Notes: map[string]string{
					"user_id": userID.String(),
					"kind":    "membership",
				},
			}},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(ledgerSvc.recorded) != 1 || ledgerSvc.recorded[0].Status != enums.TransactionStatusFailed {
		t.Fatalf("expected one failed row, got %+v", ledgerSvc.recorded)
	}
	if len(entitlementSvc.calls) != 0 {
		t.Fatal("failed payments must not grant entitlements")
	}
}

func TestHandleSubscriptionEvents(t *testing.T) {
	userID := uuid.New()
	currentEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		event  string
		wantOp string
	}{
		{"subscription.activated", "activate"},
		{"subscription.cancelled", "cancel"},
		{"subscription.halted", "halt"},
	}
	for _, tc := range tests {
		t.Run(tc.event, func(t *testing.T) {
			entitlementSvc := &fakeEntitlements{}
			svc := newTestService(t, &fakeLedger{}, entitlementSvc)

			event := &Event{
				Event: tc.event,
				Payload: Payload{
					Subscription: &SubscriptionWrapper{Entity: SubscriptionEntity{
						ID:         "sub_test_123",
						Status:     "active",
						CurrentEnd: currentEnd.Unix(),
						Notes: map[string]string{
							"user_id": userID.String(),
							"plan_id": "gold",
						},
					}},
				},
			}
			if err := svc.HandleEvent(context.Background(), event); err != nil {
				t.Fatalf("HandleEvent error: %v", err)
			}
			if len(entitlementSvc.calls) != 1 || entitlementSvc.calls[0].op != tc.wantOp {
				t.Fatalf("expected %s call, got %+v", tc.wantOp, entitlementSvc.calls)
			}
			if tc.wantOp == "activate" && !entitlementSvc.calls[0].currentEnd.Equal(currentEnd) {
				t.Fatalf("expected provider period end, got %s", entitlementSvc.calls[0].currentEnd)
			}
		})
	}
}

func TestHandleSubscriptionChargedRecordsRenewal(t *testing.T) {
	userID := uuid.New()
	ledgerSvc := &fakeLedger{}
	entitlementSvc := &fakeEntitlements{}
	svc := newTestService(t, ledgerSvc, entitlementSvc)

	event := &Event{
		Event: "subscription.charged",
		Payload: Payload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:       "pay_test_999",
				Amount:   249900,
				Currency: "INR",
			}},
			Subscription: &SubscriptionWrapper{Entity: SubscriptionEntity{
				ID:         "sub_test_123",
				CurrentEnd: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Unix(),
				Notes:      map[string]string{"user_id": userID.String()},
			}},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(ledgerSvc.recorded) != 1 || ledgerSvc.recorded[0].ProviderTxnID != "pay_test_999" {
		t.Fatalf("expected renewal ledger row, got %+v", ledgerSvc.recorded)
	}
	if len(entitlementSvc.calls) != 1 || entitlementSvc.calls[0].op != "extend" {
		t.Fatalf("expected extend call, got %+v", entitlementSvc.calls)
	}
}
