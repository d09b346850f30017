package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the client-returned checkout confirmation.
// The expected signature is HMAC-SHA256 over "orderID|paymentID" keyed by the
// API key secret. Returns false on any mismatch, never an error.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if c == nil || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := computeHMAC([]byte(orderID+"|"+paymentID), []byte(c.keySecret))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw request body using the dedicated webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || len(body) == 0 || signature == "" {
		return false
	}
	expected := computeHMAC(body, []byte(c.webhookSecret))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func computeHMAC(message, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
