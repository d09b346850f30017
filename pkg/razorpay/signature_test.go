package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/gharbazaar/backend/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(context.Background(), config.RazorpayConfig{
		KeyID:         "rzp_test_abc123",
		KeySecret:     "test_secret_key",
		WebhookSecret: "test_webhook_secret",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	return client
}

func sign(t *testing.T, message, secret string) string {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := newTestClient(t)

	orderID := "order_test_123"
	paymentID := "pay_test_456"
	valid := sign(t, orderID+"|"+paymentID, "test_secret_key")

	if !client.VerifyPaymentSignature(orderID, paymentID, valid) {
		t.Fatal("expected valid signature to be accepted")
	}
	if client.VerifyPaymentSignature(orderID, paymentID, valid[:len(valid)-1]+"0") {
		t.Fatal("expected tampered signature to be rejected")
	}
	if client.VerifyPaymentSignature(orderID, "pay_test_other", valid) {
		t.Fatal("expected signature over a different payment to be rejected")
	}
	if client.VerifyPaymentSignature(orderID, paymentID, sign(t, orderID+"|"+paymentID, "wrong_secret")) {
		t.Fatal("expected signature from the wrong secret to be rejected")
	}
}

func TestVerifyPaymentSignatureEmptyInputs(t *testing.T) {
	client := newTestClient(t)

	valid := sign(t, "order_test_123|pay_test_456", "test_secret_key")

	if client.VerifyPaymentSignature("", "pay_test_456", valid) {
		t.Fatal("expected empty order id to be rejected")
	}
	if client.VerifyPaymentSignature("order_test_123", "", valid) {
		t.Fatal("expected empty payment id to be rejected")
	}
	if client.VerifyPaymentSignature("order_test_123", "pay_test_456", "") {
		t.Fatal("expected empty signature to be rejected")
	}

	var nilClient *Client
	if nilClient.VerifyPaymentSignature("order_test_123", "pay_test_456", valid) {
		t.Fatal("expected nil client to reject everything")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := newTestClient(t)

	body := []byte(`{"event":"payment.captured","payload":{}}`)
	valid := sign(t, string(body), "test_webhook_secret")

	if !client.VerifyWebhookSignature(body, valid) {
		t.Fatal("expected valid webhook signature to be accepted")
	}
	if client.VerifyWebhookSignature([]byte(`{"event":"payment.captured","payload":{"x":1}}`), valid) {
		t.Fatal("expected altered body to be rejected")
	}
	if client.VerifyWebhookSignature(body, sign(t, string(body), "test_secret_key")) {
		t.Fatal("expected payment-key signature on a webhook body to be rejected")
	}
	if client.VerifyWebhookSignature(nil, valid) {
		t.Fatal("expected empty body to be rejected")
	}
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	if _, err := NewClient(ctx, config.RazorpayConfig{KeySecret: "s", WebhookSecret: "w"}, nil); err == nil {
		t.Fatal("expected missing key id to fail")
	}
	if _, err := NewClient(ctx, config.RazorpayConfig{KeyID: "k", WebhookSecret: "w"}, nil); err == nil {
		t.Fatal("expected missing key secret to fail")
	}
	if _, err := NewClient(ctx, config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, nil); err == nil {
		t.Fatal("expected missing webhook secret to fail")
	}
}
