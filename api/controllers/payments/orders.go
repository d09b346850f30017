package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gharbazaar/backend/api/middleware"
	"github.com/gharbazaar/backend/api/responses"
	"github.com/gharbazaar/backend/api/validators"
	corepayments "github.com/gharbazaar/backend/internal/payments"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

// UserDirectory resolves the contact details prefilled into the checkout
// widget.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type createOrderRequest struct {
	Kind       string  `json:"kind" validate:"required"`
	PlanID     string  `json:"planId" validate:"omitempty"`
	Amount     int64   `json:"amount" validate:"omitempty,gt=0"`
	PropertyID *string `json:"propertyId" validate:"omitempty,uuid"`
	Currency   string  `json:"currency" validate:"omitempty,oneof=INR USD"`
}

type orderPrefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type createOrderResponse struct {
	Provider    string            `json:"provider"`
	OrderID     string            `json:"orderId"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	KeyID       string            `json:"keyId,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	Notes       map[string]string `json:"notes"`
	Prefill     *orderPrefill     `json:"prefill,omitempty"`
}

// CreateOrder prices a purchase and opens a provider order for checkout.
func CreateOrder(svc *corepayments.OrderService, users UserDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		method, err := enums.ParsePaymentMethod(chi.URLParam(r, "provider"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment provider"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		kind, err := enums.ParsePurchaseKind(req.Kind)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase kind"))
			return
		}

		actorID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor"))
			return
		}

		input := corepayments.BuildIntentInput{
			Kind:        kind,
			PlanID:      req.PlanID,
			AmountMajor: req.Amount,
			ActorID:     actorID,
			Currency:    req.Currency,
		}
		if req.PropertyID != nil {
			propertyID, err := uuid.Parse(*req.PropertyID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
				return
			}
			input.PropertyID = &propertyID
		}

		order, intent, err := svc.CreateOrder(ctx, method, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := createOrderResponse{
			Provider:    method.String(),
			OrderID:     order.ID,
			Amount:      order.AmountMinor,
			Currency:    order.Currency,
			KeyID:       order.PublicKey,
			RedirectURL: order.RedirectURL,
			Notes:       intent.Notes,
		}
		// The checkout widget prefill is a convenience; a lookup failure
		// never fails the order.
		if users != nil {
			if user, err := users.FindByID(ctx, actorID); err == nil {
				resp.Prefill = &orderPrefill{
					Name:  strings.TrimSpace(user.FirstName + " " + user.LastName),
					Email: user.Email,
				}
			} else if logg != nil {
				logg.Warn(ctx, "order prefill skipped, user lookup failed")
			}
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
