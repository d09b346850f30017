package enums

import "fmt"

// PurchaseKind names what a checkout intent is buying.
type PurchaseKind string

const (
	PurchaseKindMembership             PurchaseKind = "membership"
	PurchaseKindListingUpgradeFeatured PurchaseKind = "listing_upgrade_featured"
	PurchaseKindListingUpgradePremium  PurchaseKind = "listing_upgrade_premium"
)

var validPurchaseKinds = []PurchaseKind{
	PurchaseKindMembership,
	PurchaseKindListingUpgradeFeatured,
	PurchaseKindListingUpgradePremium,
}

// String implements fmt.Stringer.
func (p PurchaseKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseKind.
func (p PurchaseKind) IsValid() bool {
	for _, candidate := range validPurchaseKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// TransactionType maps the purchase kind onto the ledger row classification.
func (p PurchaseKind) TransactionType() TransactionType {
	if p == PurchaseKindMembership {
		return TransactionTypeMembership
	}
	return TransactionTypeListingUpgrade
}

// ListingTier returns the tier a listing-upgrade purchase grants, if any.
func (p PurchaseKind) ListingTier() (ListingTier, bool) {
	switch p {
	case PurchaseKindListingUpgradeFeatured:
		return ListingTierFeatured, true
	case PurchaseKindListingUpgradePremium:
		return ListingTierPremium, true
	default:
		return "", false
	}
}

// ParsePurchaseKind converts raw input into a PurchaseKind.
func ParsePurchaseKind(value string) (PurchaseKind, error) {
	for _, candidate := range validPurchaseKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase kind %q", value)
}
