package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gharbazaar/backend/pkg/enums"
)

// Membership is the one-per-user record granting marketplace entitlements.
// Rows are never deleted; lifecycle is expressed through Status.
type Membership struct {
	ID                     uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                 uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	PlanID                 string                 `gorm:"column:plan_id;not null"`
	StartDate              time.Time              `gorm:"column:start_date;not null"`
	EndDate                time.Time              `gorm:"column:end_date;not null"`
	Status                 enums.MembershipStatus `gorm:"column:status;type:membership_status;not null;default:'active'"`
	ProviderSubscriptionID *string                `gorm:"column:provider_subscription_id;index"`
	CreatedAt              time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
