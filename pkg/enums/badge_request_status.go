package enums

import "fmt"

// BadgeRequestStatus tracks a badge purchase from payment through review.
type BadgeRequestStatus string

const (
	BadgeRequestStatusPending         BadgeRequestStatus = "PENDING"
	BadgeRequestStatusPaymentReceived BadgeRequestStatus = "PAYMENT_RECEIVED"
	BadgeRequestStatusUnderReview     BadgeRequestStatus = "UNDER_REVIEW"
	BadgeRequestStatusApproved        BadgeRequestStatus = "APPROVED"
	BadgeRequestStatusRejected        BadgeRequestStatus = "REJECTED"
	BadgeRequestStatusExpired         BadgeRequestStatus = "EXPIRED"
	BadgeRequestStatusCancelled       BadgeRequestStatus = "CANCELLED"
)

var validBadgeRequestStatuses = []BadgeRequestStatus{
	BadgeRequestStatusPending,
	BadgeRequestStatusPaymentReceived,
	BadgeRequestStatusUnderReview,
	BadgeRequestStatusApproved,
	BadgeRequestStatusRejected,
	BadgeRequestStatusExpired,
	BadgeRequestStatusCancelled,
}

// String implements fmt.Stringer.
func (b BadgeRequestStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BadgeRequestStatus.
func (b BadgeRequestStatus) IsValid() bool {
	for _, candidate := range validBadgeRequestStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBadgeRequestStatus converts raw input into a BadgeRequestStatus.
func ParseBadgeRequestStatus(value string) (BadgeRequestStatus, error) {
	for _, candidate := range validBadgeRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid badge request status %q", value)
}

// IsTerminal reports whether no further transitions are allowed.
func (b BadgeRequestStatus) IsTerminal() bool {
	switch b {
	case BadgeRequestStatusApproved, BadgeRequestStatusRejected, BadgeRequestStatusExpired, BadgeRequestStatusCancelled:
		return true
	default:
		return false
	}
}
