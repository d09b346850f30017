package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/gharbazaar/backend/internal/entitlements"
	"github.com/gharbazaar/backend/internal/ledger"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

// invoicePayload is the slice of the invoice object this service consumes.
// Deserialized locally so Stripe API shape changes stay contained.
type invoicePayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	PeriodEnd    int64  `json:"period_end"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
}

type subscriptionPayload struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

type ServiceParams struct {
	Ledger       ledger.Service
	Entitlements entitlements.Service
	Logger       *logger.Logger
}

// Service reconciles Stripe webhook events. Errors returned here are logged
// and acknowledged by the controller, never surfaced to Stripe.
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

// HandleEvent dispatches one signature-verified event. Unknown events and
// events with no user attribution are acknowledged without writes.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "payment_intent.succeeded":
		return s.handlePaymentIntentSucceeded(ctx, event)
	case "invoice.payment_succeeded":
		return s.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		return s.handleInvoiceFailed(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionSync(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logSkip(ctx, string(event.Type), "unhandled event")
		return nil
	}
}

// handleCheckoutCompleted mirrors the client verify flow for hosted checkout:
// the session metadata is the authoritative purchase record.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse checkout session")
	}

	userID, ok := parseUserID(sess.Metadata)
	if !ok {
		s.logSkip(ctx, string(event.Type), "no user attribution in session metadata")
		return nil
	}
	kind, err := enums.ParsePurchaseKind(sess.Metadata["kind"])
	if err != nil {
		s.logSkip(ctx, string(event.Type), "no recognizable purchase kind in metadata")
		return nil
	}

	providerTxnID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		providerTxnID = sess.PaymentIntent.ID
	}

	metadata, _ := json.Marshal(map[string]string{
		"session_id": sess.ID,
		"kind":       kind.String(),
		"source":     "webhook",
	})
	if _, err := s.ledger.Record(ctx, ledger.RecordInput{
		UserID:        userID,
		Type:          kind.TransactionType(),
		AmountMinor:   sess.AmountTotal,
		Currency:      strings.ToUpper(string(sess.Currency)),
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodStripe,
		ProviderTxnID: providerTxnID,
		Metadata:      metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout payment")
	}

	switch kind {
	case enums.PurchaseKindMembership:
		if _, err := s.entitlements.ApplyMembership(ctx, userID, sess.Metadata["plan_id"], nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "grant membership")
		}
	default:
		tier, ok := kind.ListingTier()
		if !ok {
			s.logSkip(ctx, string(event.Type), "purchase kind grants no entitlement")
			return nil
		}
		propertyID, err := uuid.Parse(sess.Metadata["property_id"])
		if err != nil {
			s.logSkip(ctx, string(event.Type), "no property attribution in metadata")
			return nil
		}
		if err := s.entitlements.ApplyListingUpgrade(ctx, propertyID, tier); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply listing upgrade")
		}
	}
	return nil
}

// handlePaymentIntentSucceeded records directly-charged intents. Intents
// created by checkout sessions carry no metadata of their own and fall
// through to the session event.
func (s *Service) handlePaymentIntentSucceeded(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse payment intent")
	}

	userID, ok := parseUserID(intent.Metadata)
	if !ok {
		s.logSkip(ctx, string(event.Type), "no user attribution in intent metadata")
		return nil
	}

	txnType := enums.TransactionTypeMembership
	if kind, err := enums.ParsePurchaseKind(intent.Metadata["kind"]); err == nil {
		txnType = kind.TransactionType()
	}

	metadata, _ := json.Marshal(map[string]string{"source": "webhook"})
	if _, err := s.ledger.Record(ctx, ledger.RecordInput{
		UserID:        userID,
		Type:          txnType,
		AmountMinor:   intent.Amount,
		Currency:      strings.ToUpper(string(intent.Currency)),
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: enums.PaymentMethodStripe,
		ProviderTxnID: intent.ID,
		Metadata:      metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment intent")
	}
	return nil
}

// handleInvoicePaid extends the membership tied to the subscription and logs
// the renewal charge in the ledger.
func (s *Service) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	var inv invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse invoice")
	}
	if inv.Subscription == "" {
		s.logSkip(ctx, string(event.Type), "invoice not tied to a subscription")
		return nil
	}

	if err := s.entitlements.ExtendSubscription(ctx, inv.Subscription, unixTime(inv.PeriodEnd)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "extend subscription")
	}

	if userID, found := s.subscriptionUser(ctx, inv.Subscription); found {
		metadata, _ := json.Marshal(map[string]string{
			"subscription_id": inv.Subscription,
			"source":          "webhook",
		})
		if _, err := s.ledger.Record(ctx, ledger.RecordInput{
			UserID:        userID,
			Type:          enums.TransactionTypeMembership,
			AmountMinor:   inv.AmountPaid,
			Currency:      strings.ToUpper(inv.Currency),
			Status:        enums.TransactionStatusCompleted,
			PaymentMethod: enums.PaymentMethodStripe,
			ProviderTxnID: inv.ID,
			Metadata:      metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record renewal charge")
		}
	}
	return nil
}

// handleInvoiceFailed appends a failed attempt row. Halting is driven by the
// subscription status transitions, not by a single failed invoice.
func (s *Service) handleInvoiceFailed(ctx context.Context, event *stripe.Event) error {
	var inv invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse invoice")
	}
	if inv.Subscription == "" {
		s.logSkip(ctx, string(event.Type), "invoice not tied to a subscription")
		return nil
	}

	userID, found := s.subscriptionUser(ctx, inv.Subscription)
	if !found {
		s.logSkip(ctx, string(event.Type), "no membership for subscription")
		return nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"subscription_id": inv.Subscription,
		"source":          "webhook",
	})
	if _, err := s.ledger.Record(ctx, ledger.RecordInput{
		UserID:        userID,
		Type:          enums.TransactionTypeMembership,
		AmountMinor:   inv.AmountDue,
		Currency:      strings.ToUpper(inv.Currency),
		Status:        enums.TransactionStatusFailed,
		PaymentMethod: enums.PaymentMethodStripe,
		ProviderTxnID: inv.ID,
		Metadata:      metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record failed renewal")
	}
	return nil
}

// handleSubscriptionSync applies the subscription's current status. Events
// may arrive out of order; each applies its own status, so the last writer
// wins.
func (s *Service) handleSubscriptionSync(ctx context.Context, event *stripe.Event) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse subscription")
	}

	switch sub.Status {
	case "active", "trialing":
		userID, ok := parseUserID(sub.Metadata)
		if !ok {
			s.logSkip(ctx, string(event.Type), "no user attribution in subscription metadata")
			return nil
		}
		return s.entitlements.ActivateSubscription(ctx, userID, sub.Metadata["plan_id"], sub.ID, unixTime(sub.CurrentPeriodEnd))
	case "past_due", "unpaid":
		return s.entitlements.HaltSubscription(ctx, sub.ID)
	case "canceled":
		return s.entitlements.CancelSubscription(ctx, sub.ID)
	default:
		s.logSkip(ctx, string(event.Type), "subscription status needs no action")
		return nil
	}
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse subscription")
	}
	return s.entitlements.CancelSubscription(ctx, sub.ID)
}

// subscriptionUser resolves the owning user through the stored membership.
func (s *Service) subscriptionUser(ctx context.Context, subscriptionID string) (uuid.UUID, bool) {
	owner, err := s.entitlements.SubscriptionOwner(ctx, subscriptionID)
	if err != nil {
		s.logSkip(ctx, "subscription_lookup", "membership lookup failed")
		return uuid.Nil, false
	}
	return owner, true
}

func (s *Service) logSkip(ctx context.Context, event, reason string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event": event, "reason": reason})
	s.logg.Info(ctx, "stripe event acknowledged without action")
}

func parseUserID(metadata map[string]string) (uuid.UUID, bool) {
	raw := metadata["user_id"]
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
