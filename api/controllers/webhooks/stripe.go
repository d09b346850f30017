package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/gharbazaar/backend/api/responses"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
	"github.com/gharbazaar/backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook handles Stripe checkout and subscription lifecycle events.
// Same acknowledgement policy as the Razorpay handler: once the signature
// and envelope parse, the delivery gets a 200.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard webhookGuard, paymentMetrics *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProvider(ctx, "stripe")
		}

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
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

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			paymentMetrics.IncSignatureRejection("stripe", "webhook")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment verification failed"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			paymentMetrics.IncSignatureRejection("stripe", "webhook")
			if logg != nil {
				warnCtx := logg.WithFields(ctx, map[string]any{"security": "signature_mismatch"})
				logg.Warn(warnCtx, "stripe webhook signature rejected")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment verification failed"))
			return
		}

		paymentMetrics.IncWebhookEvent("stripe", string(event.Type))

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Delete(ctx, event.ID)
			paymentMetrics.IncWebhookFailure("stripe", string(event.Type))
			if logg != nil {
				logg.Error(ctx, fmt.Sprintf("stripe event %s handler failed", event.ID), err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
