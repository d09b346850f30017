package razorpaywebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gharbazaar/backend/internal/entitlements"
	"github.com/gharbazaar/backend/internal/ledger"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

// Event is the Razorpay webhook envelope. Payload members are present or
// absent depending on the event name.
type Event struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Payment      *PaymentWrapper      `json:"payment"`
	Order        *OrderWrapper        `json:"order"`
	Subscription *SubscriptionWrapper `json:"subscription"`
}

type PaymentWrapper struct {
	Entity PaymentEntity `json:"entity"`
}

type PaymentEntity struct {
	ID          string            `json:"id"`
	OrderID     string            `json:"order_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	Notes       map[string]string `json:"notes"`
}

type OrderWrapper struct {
	Entity OrderEntity `json:"entity"`
}

type OrderEntity struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type SubscriptionWrapper struct {
	Entity SubscriptionEntity `json:"entity"`
}

type SubscriptionEntity struct {
	ID         string            `json:"id"`
	PlanID     string            `json:"plan_id"`
	Status     string            `json:"status"`
	CurrentEnd int64             `json:"current_end"`
	Notes      map[string]string `json:"notes"`
}

type ServiceParams struct {
	Ledger       ledger.Service
	Entitlements entitlements.Service
	Logger       *logger.Logger
}

// Service reconciles Razorpay webhook events against the ledger and
// entitlements. Errors returned here are logged and acknowledged by the
// controller, never surfaced to Razorpay.
type Service struct {
	ledger       ledger.Service
	entitlements entitlements.Service
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements service required")
	}
	return &Service{
		ledger:       params.Ledger,
		entitlements: params.Entitlements,
		logg:         params.Logger,
	}, nil
}

// HandleEvent dispatches one verified event. Unknown events and events with
// no user attribution are acknowledged without writes.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "razorpay event required")
	}

	switch strings.ToLower(event.Event) {
	case "payment.captured", "order.paid":
		return s.handlePaymentCaptured(ctx, event)
	case "payment.failed":
		return s.handlePaymentFailed(ctx, event)
	case "subscription.activated":
		return s.handleSubscriptionActivated(ctx, event)
	case "subscription.charged":
		return s.handleSubscriptionCharged(ctx, event)
	case "subscription.cancelled":
		return s.handleSubscriptionCancelled(ctx, event)
	case "subscription.halted":
		return s.handleSubscriptionHalted(ctx, event)
	default:
		s.logSkip(ctx, event.Event, "unhandled event")
		return nil
	}
}

// handlePaymentCaptured is the async twin of the client verify flow. The
// ledger's unique index makes the two paths converge on one row.
func (s *Service) handlePaymentCaptured(ctx context.Context, event *Event) error {
	payment, notes := paymentAndNotes(event)
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}

	userID, ok := parseUserID(notes)
	if !ok {
		s.logSkip(ctx, event.Event, "no user attribution in notes")
		return nil
	}
	kind, err := enums.ParsePurchaseKind(notes["kind"])
	if err != nil {
		s.logSkip(ctx, event.Event, "no recognizable purchase kind in notes")
		return nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"order_id": payment.OrderID,
		"kind":     kind.String(),
		"source":   "webhook",
	})
	_, err = s.ledger.Record(ctx, ledger.RecordInput{
		UserID:        userID,
		Type:          kind.TransactionType(),
		AmountMinor:   payment.Amount,
		Currency:      payment.Currency,
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodRazorpay,
		ProviderTxnID: payment.ID,
		Metadata:      metadata,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record captured payment")
	}

	switch kind {
	case enums.PurchaseKindMembership:
		if _, err := s.entitlements.ApplyMembership(ctx, userID, notes["plan_id"], nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "grant membership")
		}
	default:
		tier, ok := kind.ListingTier()
		if !ok {
			s.logSkip(ctx, event.Event, "purchase kind grants no entitlement")
			return nil
		}
		propertyID, err := uuid.Parse(notes["property_id"])
		if err != nil {
			s.logSkip(ctx, event.Event, "no property attribution in notes")
			return nil
		}
		if err := s.entitlements.ApplyListingUpgrade(ctx, propertyID, tier); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply listing upgrade")
		}
	}
	return nil
}

// handlePaymentFailed appends a failed attempt row. One row per attempt;
// failed attempts never touch entitlements.
func (s *Service) handlePaymentFailed(ctx context.Context, event *Event) error {
	payment, notes := paymentAndNotes(event)
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}

	userID, ok := parseUserID(notes)
	if !ok {
		s.logSkip(ctx, event.Event, "no user attribution in notes")
		return nil
	}

	txnType := enums.TransactionTypeMembership
	if kind, err := enums.ParsePurchaseKind(notes["kind"]); err == nil {
		txnType = kind.TransactionType()
	}

	metadata, _ := json.Marshal(map[string]string{
		"order_id": payment.OrderID,
		"source":   "webhook",
	})
	_, err := s.ledger.Record(ctx, ledger.RecordInput{
		UserID:        userID,
		Type:          txnType,
		AmountMinor:   payment.Amount,
		Currency:      payment.Currency,
		Status:        enums.TransactionStatusFailed,
		PaymentMethod: enums.PaymentMethodRazorpay,
		ProviderTxnID: payment.ID,
		Metadata:      metadata,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record failed payment")
	}
	return nil
}

func (s *Service) handleSubscriptionActivated(ctx context.Context, event *Event) error {
	sub := subscriptionEntity(event)
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload missing")
	}
	userID, ok := parseUserID(sub.Notes)
	if !ok {
		s.logSkip(ctx, event.Event, "no user attribution in subscription notes")
		return nil
	}
	planID := sub.Notes["plan_id"]
	return s.entitlements.ActivateSubscription(ctx, userID, planID, sub.ID, unixTime(sub.CurrentEnd))
}

func (s *Service) handleSubscriptionCharged(ctx context.Context, event *Event) error {
	sub := subscriptionEntity(event)
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload missing")
	}

	// Renewal charges also land in the ledger when the payment is attached.
	if payment, notes := paymentAndNotes(event); payment != nil {
		if userID, ok := parseUserID(mergeNotes(notes, sub.Notes)); ok {
			metadata, _ := json.Marshal(map[string]string{
				"subscription_id": sub.ID,
				"source":          "webhook",
			})
			if _, err := s.ledger.Record(ctx, ledger.RecordInput{
				UserID:        userID,
				Type:          enums.TransactionTypeMembership,
				AmountMinor:   payment.Amount,
				Currency:      payment.Currency,
				Status:        enums.TransactionStatusCompleted,
				PaymentMethod: enums.PaymentMethodRazorpay,
				ProviderTxnID: payment.ID,
				Metadata:      metadata,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record renewal charge")
			}
		}
	}

	return s.entitlements.ExtendSubscription(ctx, sub.ID, unixTime(sub.CurrentEnd))
}

func (s *Service) handleSubscriptionCancelled(ctx context.Context, event *Event) error {
	sub := subscriptionEntity(event)
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload missing")
	}
	return s.entitlements.CancelSubscription(ctx, sub.ID)
}

func (s *Service) handleSubscriptionHalted(ctx context.Context, event *Event) error {
	sub := subscriptionEntity(event)
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload missing")
	}
	return s.entitlements.HaltSubscription(ctx, sub.ID)
}

func (s *Service) logSkip(ctx context.Context, event, reason string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event": event, "reason": reason})
	s.logg.Info(ctx, "razorpay event acknowledged without action")
}

// paymentAndNotes extracts the payment entity and the richest available notes
// bag. Payment notes win; order notes fill gaps when both are present.
func paymentAndNotes(event *Event) (*PaymentEntity, map[string]string) {
	if event.Payload.Payment == nil {
		return nil, nil
	}
	payment := event.Payload.Payment.Entity
	notes := payment.Notes
	if event.Payload.Order != nil {
		notes = mergeNotes(notes, event.Payload.Order.Entity.Notes)
	}
	return &payment, notes
}

func subscriptionEntity(event *Event) *SubscriptionEntity {
	if event.Payload.Subscription == nil {
		return nil
	}
	sub := event.Payload.Subscription.Entity
	return &sub
}

func mergeNotes(primary, fallback map[string]string) map[string]string {
	if len(primary) == 0 {
		return fallback
	}
	merged := make(map[string]string, len(primary)+len(fallback))
	for k, v := range fallback {
		merged[k] = v
	}
	for k, v := range primary {
		merged[k] = v
	}
	return merged
}

func parseUserID(notes map[string]string) (uuid.UUID, bool) {
	raw := notes["user_id"]
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func unixTime(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
