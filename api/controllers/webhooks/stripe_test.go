package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"
)

type fakeStripeService struct {
	calls int
	err   error
}

func (f *fakeStripeService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	return f.err
}

type fakeStripeClient struct {
	secret string
}

func (f *fakeStripeClient) SigningSecret() string { return f.secret }

const stripeTestSecret = "whsec_test_secret"

func stripeSignatureHeader(payload, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postStripeWebhook(handler http.HandlerFunc, payload, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(payload))
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const stripeEventBody = `{"id":"evt_test_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_test_456"}}}`

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	svc := &fakeStripeService{}
	handler := StripeWebhook(svc, &fakeStripeClient{secret: stripeTestSecret}, newFakeGuard(), testMetrics(), testLogger())

	rec := postStripeWebhook(handler, stripeEventBody, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("handler must not run without a signature")
	}
}

func TestStripeWebhookRejectsWrongSecret(t *testing.T) {
	svc := &fakeStripeService{}
	handler := StripeWebhook(svc, &fakeStripeClient{secret: stripeTestSecret}, newFakeGuard(), testMetrics(), testLogger())

	rec := postStripeWebhook(handler, stripeEventBody, stripeSignatureHeader(stripeEventBody, "whsec_other"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("handler must not run on signature failure")
	}
}

func TestStripeWebhookProcessesSignedEvent(t *testing.T) {
	svc := &fakeStripeService{}
	handler := StripeWebhook(svc, &fakeStripeClient{secret: stripeTestSecret}, newFakeGuard(), testMetrics(), testLogger())

	rec := postStripeWebhook(handler, stripeEventBody, stripeSignatureHeader(stripeEventBody, stripeTestSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected handler call, got %d", svc.calls)
	}
}

func TestStripeWebhookAcknowledgesDuplicates(t *testing.T) {
	svc := &fakeStripeService{}
	handler := StripeWebhook(svc, &fakeStripeClient{secret: stripeTestSecret}, newFakeGuard(), testMetrics(), testLogger())

	sig := stripeSignatureHeader(stripeEventBody, stripeTestSecret)
	postStripeWebhook(handler, stripeEventBody, sig)
	rec := postStripeWebhook(handler, stripeEventBody, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("replay must not re-run the handler, got %d calls", svc.calls)
	}
}

func TestStripeWebhookAcknowledgesHandlerFailure(t *testing.T) {
	svc := &fakeStripeService{err: errors.New("db down")}
	guard := newFakeGuard()
	handler := StripeWebhook(svc, &fakeStripeClient{secret: stripeTestSecret}, guard, testMetrics(), testLogger())

	rec := postStripeWebhook(handler, stripeEventBody, stripeSignatureHeader(stripeEventBody, stripeTestSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("handler failure must still return 200, got %d", rec.Code)
	}
	if len(guard.deleted) != 1 {
		t.Fatal("failed events must be unmarked so a retry can land")
	}
}
