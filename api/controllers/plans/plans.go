package plans

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/api/responses"
	"github.com/gharbazaar/backend/api/validators"
	coreplans "github.com/gharbazaar/backend/internal/plans"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

type planResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Price        string   `json:"price"`
	Currency     string   `json:"currency"`
	DurationDays int      `json:"durationDays"`
	MaxListings  int      `json:"maxListings"`
	Features     []string `json:"features"`
	IsDefault    bool     `json:"isDefault"`
}

func toPlanResponse(plan models.MembershipPlan) planResponse {
	return planResponse{
		ID:           plan.ID,
		Name:         plan.Name,
		Status:       plan.Status.String(),
		Price:        plan.Price.StringFixed(2),
		Currency:     plan.Currency,
		DurationDays: plan.DurationDays,
		MaxListings:  plan.MaxListings,
		Features:     []string(plan.Features),
		IsDefault:    plan.IsDefault,
	}
}

// Catalog returns the purchasable plans. Hidden plans are never included.
func Catalog(svc coreplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.List(ctx, false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, toPlanResponse(plan))
		}
		responses.WriteSuccess(w, out)
	}
}

// List returns the plan catalog. Admins see hidden plans too.
func List(svc coreplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		includeHidden := r.URL.Query().Get("include_hidden") == "true"
		plans, err := svc.List(ctx, includeHidden)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, toPlanResponse(plan))
		}
		responses.WriteSuccess(w, out)
	}
}

type createPlanRequest struct {
	ID           string   `json:"id" validate:"required,min=2,max=40"`
	Name         string   `json:"name" validate:"required,min=2,max=80"`
	Price        string   `json:"price" validate:"required"`
	Currency     string   `json:"currency" validate:"omitempty,oneof=INR USD"`
	DurationDays int      `json:"durationDays" validate:"required,min=1"`
	MaxListings  int      `json:"maxListings" validate:"omitempty,min=0"`
	Features     []string `json:"features" validate:"omitempty"`
	IsDefault    bool     `json:"isDefault"`
}

// Create adds a plan to the catalog.
func Create(svc coreplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var req createPlanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
			return
		}

		plan, err := svc.Create(ctx, coreplans.CreatePlanInput{
			ID:           req.ID,
			Name:         req.Name,
			Price:        price,
			Currency:     req.Currency,
			DurationDays: req.DurationDays,
			MaxListings:  req.MaxListings,
			Features:     req.Features,
			IsDefault:    req.IsDefault,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toPlanResponse(*plan))
	}
}

type updatePlanRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=2,max=80"`
	Price        *string  `json:"price" validate:"omitempty"`
	Currency     *string  `json:"currency" validate:"omitempty,oneof=INR USD"`
	DurationDays *int     `json:"durationDays" validate:"omitempty,min=1"`
	MaxListings  *int     `json:"maxListings" validate:"omitempty,min=0"`
	Features     []string `json:"features" validate:"omitempty"`
	IsDefault    *bool    `json:"isDefault"`
}

// Update patches mutable fields of a plan.
func Update(svc coreplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var req updatePlanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := coreplans.UpdatePlanInput{
			Name:         req.Name,
			Currency:     req.Currency,
			DurationDays: req.DurationDays,
			MaxListings:  req.MaxListings,
			Features:     req.Features,
			IsDefault:    req.IsDefault,
		}
		if req.Price != nil {
			price, err := decimal.NewFromString(*req.Price)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
				return
			}
			input.Price = &price
		}

		plan, err := svc.Update(ctx, chi.URLParam(r, "planID"), input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, toPlanResponse(*plan))
	}
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active hidden"`
}

// SetStatus shows or hides a plan from the purchasable catalog.
func SetStatus(svc coreplans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParsePlanStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan status"))
			return
		}

		if err := svc.SetStatus(ctx, chi.URLParam(r, "planID"), status); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
