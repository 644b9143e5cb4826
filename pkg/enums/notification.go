package enums

import "fmt"

// NotificationType identifies the event behind an in-app notification.
type NotificationType string

const (
	NotificationTypeCommissionEarned      NotificationType = "commission_earned"
	NotificationTypeFixerBonusPaid        NotificationType = "fixer_bonus_paid"
	NotificationTypeCommissionsPaid       NotificationType = "commissions_paid"
	NotificationTypeVettingSubmitted      NotificationType = "vetting_submitted"
	NotificationTypeVettingApproved       NotificationType = "vetting_approved"
	NotificationTypeVettingRejected       NotificationType = "vetting_rejected"
	NotificationTypeBadgePaymentReceived  NotificationType = "badge_payment_received"
	NotificationTypeBadgePaymentFailed    NotificationType = "badge_payment_failed"
	NotificationTypeBadgeRequestExpired   NotificationType = "badge_request_expired"
	NotificationTypeBadgePaymentRefunded  NotificationType = "badge_payment_refunded"
	NotificationTypeBadgePaymentCancelled NotificationType = "badge_payment_cancelled"
	NotificationTypeBadgeLatePayment      NotificationType = "badge_late_payment"
	NotificationTypeBadgeApproved         NotificationType = "badge_approved"
	NotificationTypeBadgeRejected         NotificationType = "badge_rejected"
	NotificationTypeBadgeExpired          NotificationType = "badge_expired"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeCommissionEarned,
	NotificationTypeFixerBonusPaid,
	NotificationTypeCommissionsPaid,
	NotificationTypeVettingSubmitted,
	NotificationTypeVettingApproved,
	NotificationTypeVettingRejected,
	NotificationTypeBadgePaymentReceived,
	NotificationTypeBadgePaymentFailed,
	NotificationTypeBadgeRequestExpired,
	NotificationTypeBadgePaymentRefunded,
	NotificationTypeBadgePaymentCancelled,
	NotificationTypeBadgeLatePayment,
	NotificationTypeBadgeApproved,
	NotificationTypeBadgeRejected,
	NotificationTypeBadgeExpired,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
