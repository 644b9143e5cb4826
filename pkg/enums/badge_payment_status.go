package enums

import "fmt"

// BadgePaymentStatus mirrors the provider-side payment state of a badge request.
type BadgePaymentStatus string

const (
	BadgePaymentStatusPending   BadgePaymentStatus = "PENDING"
	BadgePaymentStatusPaid      BadgePaymentStatus = "PAID"
	BadgePaymentStatusRefunded  BadgePaymentStatus = "REFUNDED"
	BadgePaymentStatusCancelled BadgePaymentStatus = "CANCELLED"
)

var validBadgePaymentStatuses = []BadgePaymentStatus{
	BadgePaymentStatusPending,
	BadgePaymentStatusPaid,
	BadgePaymentStatusRefunded,
	BadgePaymentStatusCancelled,
}

// String implements fmt.Stringer.
func (b BadgePaymentStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BadgePaymentStatus.
func (b BadgePaymentStatus) IsValid() bool {
	for _, candidate := range validBadgePaymentStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBadgePaymentStatus converts raw input into a BadgePaymentStatus.
func ParseBadgePaymentStatus(value string) (BadgePaymentStatus, error) {
	for _, candidate := range validBadgePaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid badge payment status %q", value)
}
