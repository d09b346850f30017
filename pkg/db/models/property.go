package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gharbazaar/backend/pkg/enums"
)

// Property is the slice of the listing entity the payments core touches.
// Only ListingTier is mutated here, and only by the entitlement reconciler.
type Property struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index"`
	Title       string            `gorm:"column:title;not null"`
	City        string            `gorm:"column:city;not null"`
	ListingTier enums.ListingTier `gorm:"column:listing_tier;type:listing_tier;not null;default:'basic'"`
	IsActive    bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
