package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gharbazaar/backend/api/responses"
	razorpaywebhook "github.com/gharbazaar/backend/internal/webhooks/razorpay"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
	"github.com/gharbazaar/backend/pkg/metrics"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

type RazorpayWebhookService interface {
	HandleEvent(ctx context.Context, event *razorpaywebhook.Event) error
}

type razorpaySignatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// RazorpayWebhook handles Razorpay payment and subscription events.
// After the signature and envelope check out, delivery is always
// acknowledged with 200: a handler failure must not trigger a provider
// retry storm against a bug.
func RazorpayWebhook(svc RazorpayWebhookService, verifier razorpaySignatureVerifier, guard webhookGuard, paymentMetrics *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProvider(ctx, "razorpay")
		}

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(razorpaySignatureHeader)
		if signature == "" || !verifier.VerifyWebhookSignature(payload, signature) {
			paymentMetrics.IncSignatureRejection("razorpay", "webhook")
			if logg != nil {
				warnCtx := logg.WithFields(ctx, map[string]any{"security": "signature_mismatch"})
				logg.Warn(warnCtx, "razorpay webhook signature rejected")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment verification failed"))
			return
		}

		var event razorpaywebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook payload"))
			return
		}

		eventID := r.Header.Get(razorpayEventIDHeader)
		if eventID == "" {
			// Old deliveries lack the header; the body hash still dedupes retries.
			sum := sha256.Sum256(payload)
			eventID = hex.EncodeToString(sum[:])
		}

		paymentMetrics.IncWebhookEvent("razorpay", event.Event)

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Delete(ctx, eventID)
			paymentMetrics.IncWebhookFailure("razorpay", event.Event)
			if logg != nil {
				logg.Error(ctx, fmt.Sprintf("razorpay event %s handler failed", event.Event), err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("razorpay event %s processed", event.Event))
		}
		responses.WriteSuccess(w, nil)
	}
}
