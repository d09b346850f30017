package payments

import (
	"context"
	"fmt"

	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	pkgrazorpay "github.com/gharbazaar/backend/pkg/razorpay"
)

// RazorpayGateway adapts the Razorpay client to the Gateway interface.
// Razorpay is the primary gateway for INR traffic.
type RazorpayGateway struct {
	client *pkgrazorpay.Client
}

// NewRazorpayGateway wires the gateway.
func NewRazorpayGateway(client *pkgrazorpay.Client) (*RazorpayGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("razorpay client required")
	}
	return &RazorpayGateway{client: client}, nil
}

func (g *RazorpayGateway) Method() enums.PaymentMethod {
	return enums.PaymentMethodRazorpay
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, intent OrderIntent) (*ProviderOrder, error) {
	order, err := g.client.CreateOrder(ctx, intent.AmountMinor, intent.Currency, intent.Receipt, intent.Notes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create razorpay order")
	}
	return &ProviderOrder{
		ID:          order.ID,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		PublicKey:   g.client.KeyID(),
	}, nil
}

func (g *RazorpayGateway) VerifyPaymentSignature(_ context.Context, orderID, paymentID, signature string) bool {
	return g.client.VerifyPaymentSignature(orderID, paymentID, signature)
}

func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, header string) bool {
	return g.client.VerifyWebhookSignature(body, header)
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error) {
	payment, err := g.client.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch razorpay payment")
	}
	return &ProviderPayment{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		AmountMinor: payment.Amount,
		Currency:    payment.Currency,
		Method:      payment.Method,
		Status:      payment.Status,
	}, nil
}

func (g *RazorpayGateway) FetchOrderNotes(ctx context.Context, orderID string) (map[string]string, error) {
	notes, err := g.client.FetchOrderNotes(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch razorpay order")
	}
	return notes, nil
}

func (g *RazorpayGateway) PublicKey() string {
	return g.client.KeyID()
}
