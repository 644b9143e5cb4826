package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/badges"
	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	pkgstripe "github.com/fixersapp/fixers-backend/pkg/stripe"
)

const (
	defaultMaxFailedAttempts = 3
	maxAttemptsReason        = "maximum payment attempts exceeded"
	defaultCancelReason      = "payment cancelled"
	defaultFailureReason     = "payment failed"
	latePaymentReason        = "payment captured after the request expired"

	// metaLastFailureEventID remembers the failure event already counted so a
	// redelivery that slipped past the redis guard does not count twice.
	metaLastFailureEventID = "lastPaymentFailureEventId"
)

// Outcome is the typed result of one webhook event. Every outcome is
// acknowledged to Stripe with a 200.
type Outcome string

const (
	OutcomeApplied                 Outcome = "applied"
	OutcomeExpired                 Outcome = "expired"
	// OutcomeLatePayment records money captured for an already expired request.
	OutcomeLatePayment             Outcome = "late_payment"
	OutcomeIgnoredUnknownReference Outcome = "ignored_unknown_reference"
	OutcomeIgnoredDuplicate        Outcome = "ignored_duplicate"
	OutcomeIgnoredInvalidState     Outcome = "ignored_invalid_state"
	OutcomeIgnoredEventType        Outcome = "ignored_event_type"
	// OutcomeFailed is reported by the HTTP layer when HandleEvent returned an error.
	OutcomeFailed Outcome = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	Tx                txRunner
	Notifier          notifications.Notifier
	Payments          pkgstripe.PaymentIntentCanceler
	Logger            *logger.Logger
	MaxFailedAttempts int
	Clock             func() time.Time
}

// Service drives badge request payment state from Stripe events.
type Service struct {
	repo        Repository
	tx          txRunner
	notifier    notifications.Notifier
	payments    pkgstripe.PaymentIntentCanceler
	logg        *logger.Logger
	maxAttempts int
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment intent canceler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	maxAttempts := params.MaxFailedAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxFailedAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:        params.Repo,
		tx:          params.Tx,
		notifier:    params.Notifier,
		payments:    params.Payments,
		logg:        params.Logger,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return clock().UTC() },
	}, nil
}

// decision is what a handler wants done with the locked request.
// A nil fields map means no write.
type decision struct {
	outcome      Outcome
	guard        Guard
	fields       map[string]any
	notify       []notifications.Message
	cancelIntent bool
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		pi, err := decodePaymentIntent(event)
		if err != nil {
			return "", err
		}
		return s.apply(ctx, pi.ID, s.succeeded)
	case stripe.EventTypePaymentIntentPaymentFailed:
		pi, err := decodePaymentIntent(event)
		if err != nil {
			return "", err
		}
		return s.apply(ctx, pi.ID, func(req *models.BadgeRequest, now time.Time) decision {
			return s.failed(req, now, event.ID, failureReason(pi))
		})
	case stripe.EventTypePaymentIntentCanceled:
		pi, err := decodePaymentIntent(event)
		if err != nil {
			return "", err
		}
		reason := string(pi.CancellationReason)
		if reason == "" {
			reason = defaultCancelReason
		}
		return s.apply(ctx, pi.ID, func(req *models.BadgeRequest, now time.Time) decision {
			return s.canceled(req, now, reason)
		})
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if charge.PaymentIntent == nil {
			return OutcomeIgnoredUnknownReference, nil
		}
		return s.apply(ctx, charge.PaymentIntent.ID, s.refunded)
	default:
		return OutcomeIgnoredEventType, nil
	}
}

func (s *Service) apply(ctx context.Context, paymentRef string, decide func(*models.BadgeRequest, time.Time) decision) (Outcome, error) {
	ctx = s.logg.WithField(ctx, "payment_ref", paymentRef)
	if paymentRef == "" {
		return OutcomeIgnoredUnknownReference, nil
	}

	now := s.now()
	var (
		result    decision
		requestID string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.LockByPaymentRef(ctx, paymentRef)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = decision{outcome: OutcomeIgnoredUnknownReference}
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock badge request")
		}
		requestID = req.ID.String()

		result = decide(req, now)
		if result.fields == nil {
			return nil
		}
		affected, err := repo.UpdateRequest(ctx, req.ID, result.guard, result.fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update badge request")
		}
		if affected == 0 {
			result = decision{outcome: OutcomeIgnoredInvalidState}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if result.outcome == OutcomeIgnoredUnknownReference {
		s.logg.Warn(ctx, "stripe event references no badge request")
	} else {
		ctx = s.logg.WithBadgeRequestID(ctx, requestID)
		s.logg.Info(s.logg.WithField(ctx, "outcome", string(result.outcome)), "badge payment event handled")
	}
	if result.cancelIntent {
		if err := s.payments.CancelPaymentIntent(ctx, paymentRef); err != nil {
			s.logg.Error(ctx, "failed to cancel payment intent of expired request", err)
		}
	}
	for _, msg := range result.notify {
		s.notifier.Notify(ctx, msg)
	}
	return result.outcome, nil
}

func (s *Service) succeeded(req *models.BadgeRequest, now time.Time) decision {
	if req.PaymentStatus == enums.BadgePaymentStatusPaid {
		return decision{outcome: OutcomeIgnoredDuplicate}
	}
	if req.Status == enums.BadgeRequestStatusExpired && req.PaymentStatus == enums.BadgePaymentStatusPending {
		return s.paidAfterExpiry(req, now)
	}
	if req.Status != enums.BadgeRequestStatusPending || req.PaymentStatus != enums.BadgePaymentStatusPending {
		return decision{outcome: OutcomeIgnoredInvalidState}
	}

	meta := req.Metadata.Clone()
	meta[badges.MetaPaidAt] = now.Format(time.RFC3339)
	return decision{
		outcome: OutcomeApplied,
		guard:   pendingGuard(),
		fields: map[string]any{
			"payment_status": enums.BadgePaymentStatusPaid,
			"status":         enums.BadgeRequestStatusPaymentReceived,
			"paid_at":        now,
			"metadata":       meta,
		},
		notify: []notifications.Message{
			{
				Recipient: notifications.ToUser(req.FixerID),
				Type:      enums.NotificationTypeBadgePaymentReceived,
				Title:     "Badge payment received",
				Body:      fmt.Sprintf("We received your payment of $%s. Your badge request is now waiting for review.", req.PaymentAmount.StringFixed(2)),
				Link:      "/fixer/badges",
				SendEmail: true,
			},
			{
				Type:  enums.NotificationTypeBadgePaymentReceived,
				Title: "Badge request ready for review",
				Body:  fmt.Sprintf("Badge request %s has been paid and is waiting for review.", req.ID),
				Link:  "/admin/badge-requests",
			},
		},
	}
}

// paidAfterExpiry records a charge that landed after the request expired, for
// example when the intent was confirmed before its cancellation reached
// Stripe. The request stays EXPIRED; admins decide between refund and manual
// approval.
func (s *Service) paidAfterExpiry(req *models.BadgeRequest, now time.Time) decision {
	meta := req.Metadata.Clone()
	meta[badges.MetaPaidAt] = now.Format(time.RFC3339)
	meta[badges.MetaLatePayment] = latePaymentReason
	return decision{
		outcome: OutcomeLatePayment,
		guard: Guard{
			Status:        []enums.BadgeRequestStatus{enums.BadgeRequestStatusExpired},
			PaymentStatus: enums.BadgePaymentStatusPending,
		},
		fields: map[string]any{
			"payment_status": enums.BadgePaymentStatusPaid,
			"paid_at":        now,
			"metadata":       meta,
		},
		notify: []notifications.Message{
			{
				Recipient: notifications.ToUser(req.FixerID),
				Type:      enums.NotificationTypeBadgePaymentReceived,
				Title:     "Badge payment received after expiry",
				Body:      fmt.Sprintf("We received your payment of $%s after your badge request expired. Our team will refund it or reopen the request.", req.PaymentAmount.StringFixed(2)),
				Link:      "/fixer/badges",
				SendEmail: true,
			},
			{
				Type:      enums.NotificationTypeBadgeLatePayment,
				Title:     "Payment captured on expired badge request",
				Body:      fmt.Sprintf("Badge request %s expired but its payment of $%s succeeded. Refund it or approve the request manually.", req.ID, req.PaymentAmount.StringFixed(2)),
				Link:      "/admin/badge-requests",
				SendEmail: true,
			},
		},
	}
}

func (s *Service) failed(req *models.BadgeRequest, now time.Time, eventID, reason string) decision {
	if req.Status != enums.BadgeRequestStatusPending || req.PaymentStatus != enums.BadgePaymentStatusPending {
		return decision{outcome: OutcomeIgnoredInvalidState}
	}
	if eventID != "" && req.Metadata[metaLastFailureEventID] == eventID {
		return decision{outcome: OutcomeIgnoredDuplicate}
	}

	// the persisted counter is the only source for the attempt number
	attempts := req.Metadata.Int(badges.MetaFailedPaymentAttempts) + 1
	meta := req.Metadata.Clone()
	meta[badges.MetaFailedPaymentAttempts] = attempts
	meta[badges.MetaLastPaymentFailureAt] = now.Format(time.RFC3339)
	meta[badges.MetaLastPaymentFailure] = reason
	if eventID != "" {
		meta[metaLastFailureEventID] = eventID
	}

	out := decision{
		outcome: OutcomeApplied,
		guard:   pendingGuard(),
		fields:  map[string]any{"metadata": meta},
	}
	if attempts >= s.maxAttempts {
		meta[badges.MetaExpiredAt] = now.Format(time.RFC3339)
		meta[badges.MetaExpiredReason] = maxAttemptsReason
		out.outcome = OutcomeExpired
		out.fields["status"] = enums.BadgeRequestStatusExpired
		out.cancelIntent = true
		out.notify = []notifications.Message{{
			Recipient: notifications.ToUser(req.FixerID),
			Type:      enums.NotificationTypeBadgeRequestExpired,
			Title:     "Badge request expired",
			Body:      fmt.Sprintf("Your badge request expired after %d failed payment attempts. You can submit a new request at any time.", attempts),
			Link:      "/fixer/badges",
			SendEmail: true,
		}}
		return out
	}

	out.notify = []notifications.Message{{
		Recipient: notifications.ToUser(req.FixerID),
		Type:      enums.NotificationTypeBadgePaymentFailed,
		Title:     "Badge payment failed",
		Body:      fmt.Sprintf("Your badge payment failed: %s. %d attempt(s) remaining.", reason, s.maxAttempts-attempts),
		Link:      "/fixer/badges",
		SendEmail: true,
	}}
	return out
}

func (s *Service) refunded(req *models.BadgeRequest, now time.Time) decision {
	if req.PaymentStatus == enums.BadgePaymentStatusRefunded {
		return decision{outcome: OutcomeIgnoredDuplicate}
	}
	if req.PaymentStatus != enums.BadgePaymentStatusPaid {
		return decision{outcome: OutcomeIgnoredInvalidState}
	}

	meta := req.Metadata.Clone()
	meta[badges.MetaRefundedAt] = now.Format(time.RFC3339)
	return decision{
		outcome: OutcomeApplied,
		guard:   Guard{PaymentStatus: enums.BadgePaymentStatusPaid},
		fields: map[string]any{
			"payment_status": enums.BadgePaymentStatusRefunded,
			"metadata":       meta,
		},
		notify: []notifications.Message{{
			Recipient: notifications.ToUser(req.FixerID),
			Type:      enums.NotificationTypeBadgePaymentRefunded,
			Title:     "Badge payment refunded",
			Body:      fmt.Sprintf("Your badge payment of $%s has been refunded.", req.PaymentAmount.StringFixed(2)),
			Link:      "/fixer/badges",
		}},
	}
}

func (s *Service) canceled(req *models.BadgeRequest, now time.Time, reason string) decision {
	if req.Status == enums.BadgeRequestStatusCancelled {
		return decision{outcome: OutcomeIgnoredDuplicate}
	}
	if req.Status != enums.BadgeRequestStatusPending || req.PaymentStatus != enums.BadgePaymentStatusPending {
		return decision{outcome: OutcomeIgnoredInvalidState}
	}

	meta := req.Metadata.Clone()
	meta[badges.MetaCancelledAt] = now.Format(time.RFC3339)
	meta[badges.MetaCancellationReason] = reason
	return decision{
		outcome: OutcomeApplied,
		guard:   pendingGuard(),
		fields: map[string]any{
			"status":         enums.BadgeRequestStatusCancelled,
			"payment_status": enums.BadgePaymentStatusCancelled,
			"metadata":       meta,
		},
		notify: []notifications.Message{{
			Recipient: notifications.ToUser(req.FixerID),
			Type:      enums.NotificationTypeBadgePaymentCancelled,
			Title:     "Badge payment cancelled",
			Body:      "Your badge payment was cancelled and the request has been closed.",
			Link:      "/fixer/badges",
		}},
	}
}

func pendingGuard() Guard {
	return Guard{
		Status:        []enums.BadgeRequestStatus{enums.BadgeRequestStatusPending},
		PaymentStatus: enums.BadgePaymentStatusPending,
	}
}

func decodePaymentIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	return &pi, nil
}

func failureReason(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return pi.LastPaymentError.Msg
	}
	return defaultFailureReason
}
