package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/gharbazaar/backend/pkg/enums"
)

// MembershipPlan captures a purchasable membership tier.
// Price is stored in major units; minor units are derived at order time.
type MembershipPlan struct {
	ID           string           `gorm:"column:id;primaryKey"`
	Name         string           `gorm:"column:name;not null"`
	Status       enums.PlanStatus `gorm:"column:status;type:plan_status;not null;default:'active'"`
	Price        decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Currency     string           `gorm:"column:currency;not null;default:'INR'"`
	DurationDays int              `gorm:"column:duration_days;not null"`
	MaxListings  int              `gorm:"column:max_listings;not null;default:0"`
	Features     pq.StringArray   `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsDefault    bool             `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
