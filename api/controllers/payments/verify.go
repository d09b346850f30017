package payments

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gharbazaar/backend/api/middleware"
	"github.com/gharbazaar/backend/api/responses"
	"github.com/gharbazaar/backend/api/validators"
	corepayments "github.com/gharbazaar/backend/internal/payments"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

// PaymentVerifier is the verify pipeline surface the controller needs.
type PaymentVerifier interface {
	Verify(ctx context.Context, input corepayments.VerifyInput) (*corepayments.VerifyResult, error)
}

type verifyRequest struct {
	OrderID    string  `json:"orderId" validate:"required"`
	PaymentID  string  `json:"paymentId" validate:"required"`
	Signature  string  `json:"signature" validate:"omitempty"`
	Kind       string  `json:"kind" validate:"omitempty"`
	PlanID     string  `json:"planId" validate:"omitempty"`
	PropertyID *string `json:"propertyId" validate:"omitempty,uuid"`
}

// VerifyPayment confirms a client-reported payment and grants what it bought.
func VerifyPayment(verifier PaymentVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verifier unavailable"))
			return
		}

		method, err := enums.ParsePaymentMethod(chi.URLParam(r, "provider"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment provider"))
			return
		}

		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		actorID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor"))
			return
		}

		input := corepayments.VerifyInput{
			Method:    method,
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Signature: req.Signature,
			ActorID:   actorID,
			PlanID:    req.PlanID,
		}
		if req.Kind != "" {
			kind, err := enums.ParsePurchaseKind(req.Kind)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase kind"))
				return
			}
			input.Kind = kind
		}
		if req.PropertyID != nil {
			propertyID, err := uuid.Parse(*req.PropertyID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
				return
			}
			input.PropertyID = &propertyID
		}

		result, err := verifier.Verify(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
