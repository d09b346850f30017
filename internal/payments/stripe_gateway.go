package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	pkgstripe "github.com/gharbazaar/backend/pkg/stripe"
)

// StripeCheckoutClient exposes the subset of Stripe operations the gateway
// needs, so it can be tested without the network.
type StripeCheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeCheckoutWrapper struct{}

// NewStripeCheckoutClient wraps the package-level Stripe bindings.
func NewStripeCheckoutClient(api *pkgstripe.Client) StripeCheckoutClient {
	if api == nil {
		return nil
	}
	return &stripeCheckoutWrapper{}
}

func (w *stripeCheckoutWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (w *stripeCheckoutWrapper) GetSession(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.Get(id, params)
}

func (w *stripeCheckoutWrapper) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

// StripeGateway adapts hosted checkout sessions to the Gateway interface.
// Stripe has no client-side HMAC: the confirmation check is a session
// round-trip against the API instead.
type StripeGateway struct {
	cfg      *pkgstripe.Client
	checkout StripeCheckoutClient
}

// NewStripeGateway wires the gateway.
func NewStripeGateway(cfg *pkgstripe.Client, checkout StripeCheckoutClient) (*StripeGateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if checkout == nil {
		checkout = NewStripeCheckoutClient(cfg)
	}
	return &StripeGateway{cfg: cfg, checkout: checkout}, nil
}

func (g *StripeGateway) Method() enums.PaymentMethod {
	return enums.PaymentMethodStripe
}

func (g *StripeGateway) CreateOrder(ctx context.Context, intent OrderIntent) (*ProviderOrder, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.cfg.SuccessURL()),
		CancelURL:  stripe.String(g.cfg.CancelURL()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(intent.Currency)),
					UnitAmount: stripe.Int64(intent.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName(intent.Kind)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(intent.Receipt),
	}
	params.Metadata = intent.Notes

	sess, err := g.checkout.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create stripe checkout session")
	}

	return &ProviderOrder{
		ID:          sess.ID,
		AmountMinor: intent.AmountMinor,
		Currency:    intent.Currency,
		RedirectURL: sess.URL,
	}, nil
}

// VerifyPaymentSignature confirms the checkout by re-reading the session and
// checking it is paid and tied to the claimed payment intent. The signature
// argument is unused for Stripe.
func (g *StripeGateway) VerifyPaymentSignature(ctx context.Context, orderID, paymentID, _ string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	sess, err := g.checkout.GetSession(ctx, orderID, nil)
	if err != nil || sess == nil {
		return false
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return false
	}
	return sess.PaymentIntent != nil && sess.PaymentIntent.ID == paymentID
}

func (g *StripeGateway) VerifyWebhookSignature(body []byte, header string) bool {
	_, err := webhook.ConstructEvent(body, header, g.cfg.SigningSecret())
	return err == nil
}

func (g *StripeGateway) FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error) {
	intent, err := g.checkout.GetPaymentIntent(ctx, paymentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch stripe payment intent")
	}
	return &ProviderPayment{
		ID:          intent.ID,
		AmountMinor: intent.Amount,
		Currency:    strings.ToUpper(string(intent.Currency)),
		Method:      "card",
		Status:      string(intent.Status),
	}, nil
}

func (g *StripeGateway) FetchOrderNotes(ctx context.Context, orderID string) (map[string]string, error) {
	sess, err := g.checkout.GetSession(ctx, orderID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch stripe checkout session")
	}
	return sess.Metadata, nil
}

// PublicKey returns empty: Stripe checkout is a hosted redirect, the client
// never needs a key.
func (g *StripeGateway) PublicKey() string {
	return ""
}

func productName(kind enums.PurchaseKind) string {
	switch kind {
	case enums.PurchaseKindMembership:
		return "GharBazaar membership"
	case enums.PurchaseKindListingUpgradeFeatured:
		return "Featured listing upgrade"
	case enums.PurchaseKindListingUpgradePremium:
		return "Premium listing upgrade"
	default:
		return "GharBazaar purchase"
	}
}
