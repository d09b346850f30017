package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gharbazaar/backend/internal/listings"
	"github.com/gharbazaar/backend/internal/memberships"
	"github.com/gharbazaar/backend/internal/notifications"
	"github.com/gharbazaar/backend/internal/plans"
	"github.com/gharbazaar/backend/internal/users"
	"github.com/gharbazaar/backend/pkg/db/models"
	"github.com/gharbazaar/backend/pkg/enums"
	pkgerrors "github.com/gharbazaar/backend/pkg/errors"
	"github.com/gharbazaar/backend/pkg/logger"
)

const notifyTimeout = 10 * time.Second

// Service turns verified payments and subscription events into entitlements.
type Service interface {
	ApplyMembership(ctx context.Context, userID uuid.UUID, planID string, providerSubscriptionID *string) (*models.Membership, error)
	ApplyListingUpgrade(ctx context.Context, propertyID uuid.UUID, tier enums.ListingTier) error
	ActivateSubscription(ctx context.Context, userID uuid.UUID, planID, subscriptionID string, currentEnd time.Time) error
	ExtendSubscription(ctx context.Context, subscriptionID string, currentEnd time.Time) error
	CancelSubscription(ctx context.Context, subscriptionID string) error
	HaltSubscription(ctx context.Context, subscriptionID string) error
	SubscriptionOwner(ctx context.Context, subscriptionID string) (uuid.UUID, error)
}

type service struct {
	plans       *plans.Repository
	memberships *memberships.Repository
	listings    *listings.Repository
	users       *users.Repository
	mailer      notifications.Sender
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the entitlement reconciler.
func NewService(
	planRepo *plans.Repository,
	membershipRepo *memberships.Repository,
	listingRepo *listings.Repository,
	userRepo *users.Repository,
	mailer notifications.Sender,
	logg *logger.Logger,
) (Service, error) {
	if planRepo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	if membershipRepo == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	if listingRepo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{
		plans:       planRepo,
		memberships: membershipRepo,
		listings:    listingRepo,
		users:       userRepo,
		mailer:      mailer,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// ApplyMembership grants the plan to the user. The membership row is upserted
// by user_id: a repeat purchase replaces the window starting from now rather
// than stacking onto the previous end date.
func (s *service) ApplyMembership(ctx context.Context, userID uuid.UUID, planID string, providerSubscriptionID *string) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, err
	}

	now := s.now().UTC()
	membership := &models.Membership{
		UserID:                 userID,
		PlanID:                 plan.ID,
		StartDate:              now,
		EndDate:                now.AddDate(0, 0, plan.DurationDays),
		Status:                 enums.MembershipStatusActive,
		ProviderSubscriptionID: providerSubscriptionID,
	}

	if err := s.memberships.Upsert(ctx, membership); err != nil {
		return nil, err
	}

	s.notifyActivated(ctx, userID, plan.Name, membership.EndDate)
	return membership, nil
}

// ApplyListingUpgrade promotes a property to a paid tier.
func (s *service) ApplyListingUpgrade(ctx context.Context, propertyID uuid.UUID, tier enums.ListingTier) error {
	if propertyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "property id is required")
	}
	if tier != enums.ListingTierFeatured && tier != enums.ListingTierPremium {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot upgrade a listing to tier %q", tier))
	}

	if _, err := s.listings.FindByID(ctx, propertyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
		}
		return err
	}
	return s.listings.SetListingTier(ctx, propertyID, tier)
}

// ActivateSubscription records the first grant of a recurring membership.
// The provider's period end wins over the plan duration when it is known.
func (s *service) ActivateSubscription(ctx context.Context, userID uuid.UUID, planID, subscriptionID string, currentEnd time.Time) error {
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return err
	}

	now := s.now().UTC()
	endDate := currentEnd
	if endDate.IsZero() {
		endDate = now.AddDate(0, 0, plan.DurationDays)
	}

	membership := &models.Membership{
		UserID:                 userID,
		PlanID:                 plan.ID,
		StartDate:              now,
		EndDate:                endDate,
		Status:                 enums.MembershipStatusActive,
		ProviderSubscriptionID: &subscriptionID,
	}
	if err := s.memberships.Upsert(ctx, membership); err != nil {
		return err
	}

	s.notifyActivated(ctx, userID, plan.Name, endDate)
	return nil
}

// ExtendSubscription moves the membership end date after a successful renewal
// charge. Events may arrive out of order; the latest write wins.
func (s *service) ExtendSubscription(ctx context.Context, subscriptionID string, currentEnd time.Time) error {
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	if currentEnd.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "period end is required")
	}
	return s.memberships.ExtendBySubscription(ctx, subscriptionID, currentEnd)
}

// CancelSubscription marks the membership cancelled. Access runs until the
// already-paid end date; only the status changes.
func (s *service) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	return s.memberships.UpdateStatusBySubscription(ctx, subscriptionID, enums.MembershipStatusCancelled)
}

// HaltSubscription expires the membership after repeated failed charges and
// tells the user.
func (s *service) HaltSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	membership, err := s.memberships.FindByProviderSubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no membership for subscription")
		}
		return err
	}

	if err := s.memberships.UpdateStatusBySubscription(ctx, subscriptionID, enums.MembershipStatusExpired); err != nil {
		return err
	}

	s.notifyHalted(ctx, membership.UserID)
	return nil
}

// SubscriptionOwner resolves which user a gateway subscription belongs to.
func (s *service) SubscriptionOwner(ctx context.Context, subscriptionID string) (uuid.UUID, error) {
	if subscriptionID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	membership, err := s.memberships.FindByProviderSubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no membership for subscription")
		}
		return uuid.Nil, err
	}
	return membership.UserID, nil
}

// notifyActivated sends the activation mail without blocking the caller.
func (s *service) notifyActivated(ctx context.Context, userID uuid.UUID, planName string, endDate time.Time) {
	if s.mailer == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		user, err := s.users.FindByID(sendCtx, userID)
		if err != nil {
			s.logWarn(sendCtx, "membership activation mail skipped, user lookup failed", err)
			return
		}
		if err := s.mailer.SendMembershipActivated(sendCtx, user.Email, user.FirstName, planName, endDate); err != nil {
			s.logWarn(sendCtx, "membership activation mail failed", err)
		}
	}()
}

// notifyHalted sends the dunning mail without blocking the caller.
func (s *service) notifyHalted(ctx context.Context, userID uuid.UUID) {
	if s.mailer == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		user, err := s.users.FindByID(sendCtx, userID)
		if err != nil {
			s.logWarn(sendCtx, "membership halt mail skipped, user lookup failed", err)
			return
		}
		if err := s.mailer.SendMembershipHalted(sendCtx, user.Email, user.FirstName); err != nil {
			s.logWarn(sendCtx, "membership halt mail failed", err)
		}
	}()
}

func (s *service) logWarn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"error": err.Error()})
	s.logg.Warn(ctx, msg)
}
