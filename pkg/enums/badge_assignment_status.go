package enums

import "fmt"

type BadgeAssignmentStatus string

const (
	BadgeAssignmentStatusActive  BadgeAssignmentStatus = "ACTIVE"
	BadgeAssignmentStatusExpired BadgeAssignmentStatus = "EXPIRED"
	BadgeAssignmentStatusRevoked BadgeAssignmentStatus = "REVOKED"
)

var validBadgeAssignmentStatuses = []BadgeAssignmentStatus{
	BadgeAssignmentStatusActive,
	BadgeAssignmentStatusExpired,
	BadgeAssignmentStatusRevoked,
}

// String implements fmt.Stringer.
func (b BadgeAssignmentStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BadgeAssignmentStatus.
func (b BadgeAssignmentStatus) IsValid() bool {
	for _, candidate := range validBadgeAssignmentStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBadgeAssignmentStatus converts raw input into a BadgeAssignmentStatus.
func ParseBadgeAssignmentStatus(value string) (BadgeAssignmentStatus, error) {
	for _, candidate := range validBadgeAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid badge assignment status %q", value)
}
