package enums

import "fmt"

// TransactionType classifies what a ledger row paid for.
type TransactionType string

const (
	TransactionTypeMembership     TransactionType = "membership"
	TransactionTypeListingUpgrade TransactionType = "listing_upgrade"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeMembership,
	TransactionTypeListingUpgrade,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
