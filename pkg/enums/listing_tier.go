package enums

import "fmt"

// ListingTier ranks how prominently a property listing is shown.
type ListingTier string

const (
	ListingTierBasic    ListingTier = "basic"
	ListingTierFeatured ListingTier = "featured"
	ListingTierPremium  ListingTier = "premium"
)

var validListingTiers = []ListingTier{
	ListingTierBasic,
	ListingTierFeatured,
	ListingTierPremium,
}

// String implements fmt.Stringer.
func (l ListingTier) String() string {
	return string(l)
}

// IsValid reports whether the value is a known ListingTier.
func (l ListingTier) IsValid() bool {
	for _, candidate := range validListingTiers {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseListingTier converts raw input into a ListingTier.
func ParseListingTier(value string) (ListingTier, error) {
	for _, candidate := range validListingTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing tier %q", value)
}
