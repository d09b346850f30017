package memberships

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gharbazaar/backend/api/middleware"
	"github.com/gharbazaar/backend/api/responses"
	corememberships "github.com/gharbazaar/backend/internal/memberships"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

type membershipResponse struct {
	PlanID                 string    `json:"planId"`
	Status                 string    `json:"status"`
	StartDate              time.Time `json:"startDate"`
	EndDate                time.Time `json:"endDate"`
	ProviderSubscriptionID *string   `json:"providerSubscriptionId,omitempty"`
}

// Me returns the caller's current membership.
func Me(svc corememberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor"))
			return
		}

		membership, err := svc.Current(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, membershipResponse{
			PlanID:                 membership.PlanID,
			Status:                 membership.Status.String(),
			StartDate:              membership.StartDate,
			EndDate:                membership.EndDate,
			ProviderSubscriptionID: membership.ProviderSubscriptionID,
		})
	}
}
