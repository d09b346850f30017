package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gharbazaar/backend/internal/entitlements"
	"github.com/gharbazaar/backend/internal/ledger"
	"github.com/gharbazaar/backend/internal/notifications"
	"github.com/gharbazaar/backend/internal/users"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
	"github.com/gharbazaar/backend/pkg/metrics"
)

const (
	enrichTimeout  = 5 * time.Second
	receiptTimeout = 10 * time.Second
)

// VerifyInput carries the client's checkout confirmation. Kind, PlanID and
// PropertyID are advisory; the provider-side order notes are authoritative.
type VerifyInput struct {
	Method     enums.PaymentMethod
	OrderID    string
	PaymentID  string
	Signature  string
	ActorID    uuid.UUID
	Kind       enums.PurchaseKind
	PlanID     string
	PropertyID *uuid.UUID
}

// VerifyResult reports what the confirmed payment bought.
type VerifyResult struct {
	TransactionID     uuid.UUID          `json:"transactionId"`
	ProviderPaymentID string             `json:"providerPaymentId"`
	Kind              enums.PurchaseKind `json:"kind"`
	Membership        *models.Membership `json:"membership,omitempty"`
}

// Verifier runs the verify-then-act pipeline: nothing is written before the
// provider signature passes.
type Verifier struct {
	registry     *Registry
	ledger       ledger.Service
	entitlements entitlements.Service
	users        *users.Repository
	mailer       notifications.Sender
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
}

// NewVerifier wires the verifier.
func NewVerifier(
	registry *Registry,
	ledgerSvc ledger.Service,
	entitlementSvc entitlements.Service,
	userRepo *users.Repository,
	mailer notifications.Sender,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (*Verifier, error) {
	if registry == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if entitlementSvc == nil {
		return nil, fmt.Errorf("entitlements service required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Verifier{
		registry:     registry,
		ledger:       ledgerSvc,
		entitlements: entitlementSvc,
		users:        userRepo,
		mailer:       mailer,
		metrics:      paymentMetrics,
		logg:         logg,
	}, nil
}

// Verify confirms a client-reported payment and grants what it bought.
func (v *Verifier) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if input.OrderID == "" || input.PaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and payment id are required")
	}

	gw, err := v.registry.Get(input.Method)
	if err != nil {
		return nil, err
	}

	if v.logg != nil {
		ctx = v.logg.WithProvider(ctx, input.Method.String())
	}

	if !gw.VerifyPaymentSignature(ctx, input.OrderID, input.PaymentID, input.Signature) {
		v.metrics.IncSignatureRejection(input.Method.String(), "client")
		if v.logg != nil {
			warnCtx := v.logg.WithFields(ctx, map[string]any{
				"security": "signature_mismatch",
				"order_id": input.OrderID,
			})
			v.logg.Warn(warnCtx, "payment signature rejected")
		}
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment verification failed")
	}
	v.metrics.IncPaymentVerified(input.Method.String())

	kind, planID, propertyID, err := v.resolvePurchase(ctx, gw, input)
	if err != nil {
		return nil, err
	}

	amountMinor, currency := v.enrich(ctx, gw, input.PaymentID)

	metadata, _ := json.Marshal(map[string]string{
		"order_id": input.OrderID,
		"kind":     kind.String(),
	})
	txn, err := v.ledger.Record(ctx, ledger.RecordInput{
		UserID:        input.ActorID,
		Type:          kind.TransactionType(),
		AmountMinor:   amountMinor,
		Currency:      currency,
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: input.Method,
		ProviderTxnID: input.PaymentID,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment").WithDetails(map[string]any{"step": "ledger"})
	}

	result := &VerifyResult{
		TransactionID:     txn.ID,
		ProviderPaymentID: input.PaymentID,
		Kind:              kind,
	}

	switch kind {
	case enums.PurchaseKindMembership:
		membership, err := v.entitlements.ApplyMembership(ctx, input.ActorID, planID, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "grant membership").WithDetails(map[string]any{"step": "entitlements"})
		}
		result.Membership = membership

	default:
		tier, ok := kind.ListingTier()
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("purchase kind %q grants no entitlement", kind))
		}
		if propertyID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id is required for listing upgrades")
		}
		if err := v.entitlements.ApplyListingUpgrade(ctx, *propertyID, tier); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply listing upgrade").WithDetails(map[string]any{"step": "entitlements"})
		}
	}

	v.sendReceipt(input.ActorID, txn)
	return result, nil
}

// resolvePurchase re-reads the order notes from the provider so a tampered
// client payload cannot redirect what the payment buys. The client's claims
// are only trusted when the provider fetch itself fails.
func (v *Verifier) resolvePurchase(ctx context.Context, gw Gateway, input VerifyInput) (enums.PurchaseKind, string, *uuid.UUID, error) {
	notes, err := gw.FetchOrderNotes(ctx, input.OrderID)
	if err != nil || len(notes) == 0 {
		if v.logg != nil {
			v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
				"order_id": input.OrderID,
			}), "order notes unavailable, falling back to client fields")
		}
		if !input.Kind.IsValid() {
			return "", "", nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase kind is required")
		}
		return input.Kind, input.PlanID, input.PropertyID, nil
	}

	if owner := notes["user_id"]; owner != "" && owner != input.ActorID.String() {
		if v.logg != nil {
			v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
				"security": "order_owner_mismatch",
				"order_id": input.OrderID,
			}), "order belongs to a different user")
		}
		return "", "", nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}

	kind, err := enums.ParsePurchaseKind(notes["kind"])
	if err != nil {
		return "", "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order has no recognizable purchase kind")
	}

	var propertyID *uuid.UUID
	if raw := notes["property_id"]; raw != "" {
		parsed, err := uuid.Parse(raw)
		if err == nil {
			propertyID = &parsed
		}
	}
	return kind, notes["plan_id"], propertyID, nil
}

// enrich fetches the provider payment for the true charged amount. Failure
// falls back to zero; the ledger row still lands.
func (v *Verifier) enrich(ctx context.Context, gw Gateway, paymentID string) (int64, string) {
	fetchCtx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	payment, err := gw.FetchPayment(fetchCtx, paymentID)
	if err != nil || payment == nil {
		if v.logg != nil {
			v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
				"payment_id": paymentID,
			}), "payment enrichment failed, recording zero amount")
		}
		return 0, enums.CurrencyINR.String()
	}
	currency := payment.Currency
	if currency == "" {
		currency = enums.CurrencyINR.String()
	}
	return payment.AmountMinor, currency
}

// sendReceipt mails the ledger receipt without blocking the response.
func (v *Verifier) sendReceipt(userID uuid.UUID, txn *models.Transaction) {
	if v.mailer == nil || txn == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), receiptTimeout)
		defer cancel()

		user, err := v.users.FindByID(sendCtx, userID)
		if err != nil {
			if v.logg != nil {
				v.logg.Warn(sendCtx, "receipt skipped, user lookup failed")
			}
			return
		}
		if err := v.mailer.SendPaymentReceipt(sendCtx, user.Email, user.FirstName, txn.Amount, txn.Currency, txn.ProviderTxnID); err != nil {
			if v.logg != nil {
				v.logg.Warn(sendCtx, "receipt mail failed")
			}
		}
	}()
}
