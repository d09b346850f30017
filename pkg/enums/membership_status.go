package enums

import "fmt"

// MembershipStatus tracks the lifecycle of a user's membership.
type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusCancelled MembershipStatus = "cancelled"
	MembershipStatusExpired   MembershipStatus = "expired"
)

var validMembershipStatuses = []MembershipStatus{
	MembershipStatusActive,
	MembershipStatusCancelled,
	MembershipStatusExpired,
}

// String implements fmt.Stringer.
func (m MembershipStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MembershipStatus.
func (m MembershipStatus) IsValid() bool {
	for _, candidate := range validMembershipStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMembershipStatus converts raw input into a MembershipStatus.
func ParseMembershipStatus(value string) (MembershipStatus, error) {
	for _, candidate := range validMembershipStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership status %q", value)
}
