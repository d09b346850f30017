package payments

import (
	"context"
	"fmt"

	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
)

// ProviderOrder is the gateway-side order handed back to the client so it can
// open the checkout flow.
type ProviderOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	PublicKey   string
	RedirectURL string
}

// ProviderPayment is the gateway's record of a payment attempt, fetched for
// ledger enrichment.
type ProviderPayment struct {
	ID          string
	OrderID     string
	AmountMinor int64
	Currency    string
	Method      string
	Status      string
}

// Gateway abstracts one payment provider. Signature checks return a plain
// bool so a failed check carries no detail an attacker could use.
type Gateway interface {
	Method() enums.PaymentMethod
	CreateOrder(ctx context.Context, intent OrderIntent) (*ProviderOrder, error)
	VerifyPaymentSignature(ctx context.Context, orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, header string) bool
	FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error)
	FetchOrderNotes(ctx context.Context, orderID string) (map[string]string, error)
	PublicKey() string
}

// Registry resolves the gateway for a payment method.
type Registry struct {
	gateways map[enums.PaymentMethod]Gateway
}

// NewRegistry indexes the provided gateways by method.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	indexed := make(map[enums.PaymentMethod]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		method := gw.Method()
		if !method.IsValid() {
			return nil, fmt.Errorf("gateway reports invalid method %q", method)
		}
		if _, dup := indexed[method]; dup {
			return nil, fmt.Errorf("duplicate gateway for method %q", method)
		}
		indexed[method] = gw
	}
	if len(indexed) == 0 {
		return nil, fmt.Errorf("at least one gateway is required")
	}
	return &Registry{gateways: indexed}, nil
}

// Get returns the gateway for the method or a validation error for callers
// to surface as 400.
func (r *Registry) Get(method enums.PaymentMethod) (Gateway, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry not configured")
	}
	gw, ok := r.gateways[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment provider %q", method))
	}
	return gw, nil
}

// Methods lists the configured payment methods.
func (r *Registry) Methods() []enums.PaymentMethod {
	if r == nil {
		return nil
	}
	methods := make([]enums.PaymentMethod, 0, len(r.gateways))
	for method := range r.gateways {
		methods = append(methods, method)
	}
	return methods
}
