package badges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	dbtypes "github.com/fixersapp/fixers-backend/pkg/db/types"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/stripe"
)

// openRequestIndex allows one open request per fixer and badge.
const openRequestIndex = "ux_badge_requests_open"

// Metadata keys written on badge_requests.metadata.
const (
	MetaFailedPaymentAttempts = "failedPaymentAttempts"
	MetaLastPaymentFailureAt  = "lastPaymentFailureAt"
	MetaLastPaymentFailure    = "lastPaymentFailureReason"
	MetaPaidAt                = "paidAt"
	MetaRefundedAt            = "refundedAt"
	MetaCancelledAt           = "cancelledAt"
	MetaCancellationReason    = "cancellationReason"
	MetaExpiredAt             = "expiredAt"
	MetaExpiredReason         = "expiredReason"
	MetaPaymentIntentError    = "paymentIntentError"
	MetaRejectedAt            = "rejectedAt"
	MetaLatePayment           = "latePayment"
)

// Stripe metadata keys attached to every badge payment intent.
const (
	StripeMetaRequestID = "badge_request_id"
	StripeMetaFixerID   = "fixer_id"
	StripeMetaBadgeID   = "badge_id"
)

var reviewableStatuses = []enums.BadgeRequestStatus{
	enums.BadgeRequestStatusPaymentReceived,
	enums.BadgeRequestStatusUnderReview,
}

type CreateRequestInput struct {
	FixerID uuid.UUID
	BadgeID uuid.UUID
}

// CreateRequestResult carries the Stripe client secret the frontend confirms
// the payment with. It is empty for free badges.
type CreateRequestResult struct {
	Request      *models.BadgeRequest `json:"request"`
	ClientSecret string               `json:"client_secret,omitempty"`
}

// ReviewInput is an admin action on a badge request.
type ReviewInput struct {
	RequestID   uuid.UUID
	AdminUserID uuid.UUID
	Notes       string
}

type ApprovalResult struct {
	Request    *models.BadgeRequest    `json:"request"`
	Assignment *models.BadgeAssignment `json:"assignment"`
	Tier       *TierResult             `json:"tier,omitempty"`
}

// CreateBadgeRequest opens a paid application. The request row is written
// first so its id can travel in the payment intent metadata.
func (s *service) CreateBadgeRequest(ctx context.Context, input CreateRequestInput) (*CreateRequestResult, error) {
	if input.FixerID == uuid.Nil || input.BadgeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixer id and badge id required")
	}
	badge, err := s.repo.FindBadge(ctx, input.BadgeID)
	if err != nil {
		return nil, mapLookupError(err, "badge not found", "load badge")
	}
	if !badge.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "badge is not available")
	}

	eligibility, err := s.CheckQualityPerformanceCriteria(ctx, input.FixerID, input.BadgeID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fixer does not meet badge criteria").
			WithDetails(map[string]any{"unmet": eligibility.Unmet})
	}

	now := s.now()
	free := !badge.Price.IsPositive()
	request := &models.BadgeRequest{
		FixerID:       input.FixerID,
		BadgeID:       badge.ID,
		PaymentStatus: enums.BadgePaymentStatusPending,
		Status:        enums.BadgeRequestStatusPending,
		PaymentAmount: badge.Price,
		Metadata:      dbtypes.JSONMap{MetaFailedPaymentAttempts: 0},
	}
	if free {
		request.PaymentStatus = enums.BadgePaymentStatusPaid
		request.Status = enums.BadgeRequestStatusPaymentReceived
		request.PaidAt = &now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		held, err := repo.HasActiveAssignment(ctx, input.FixerID, badge.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active badge")
		}
		if held {
			return pkgerrors.New(pkgerrors.CodeConflict, "fixer already holds this badge")
		}
		open, err := repo.HasOpenRequest(ctx, input.FixerID, badge.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open requests")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeConflict, "a request for this badge is already open")
		}
		if err := repo.CreateRequest(ctx, request); err != nil {
			if db.IsUniqueViolation(err, openRequestIndex) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a request for this badge is already open")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create badge request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if free {
		return &CreateRequestResult{Request: request}, nil
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, stripe.PaymentIntentInput{
		Amount:         badge.Price,
		Description:    fmt.Sprintf("%s badge", badge.Name),
		IdempotencyKey: "badge-request-" + request.ID.String(),
		Metadata: map[string]string{
			StripeMetaRequestID: request.ID.String(),
			StripeMetaFixerID:   input.FixerID.String(),
			StripeMetaBadgeID:   badge.ID.String(),
		},
	})
	if err != nil {
		s.abandonRequest(ctx, request, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	ref := intent.ID
	affected, err := s.repo.UpdateRequest(ctx, request.ID, []enums.BadgeRequestStatus{enums.BadgeRequestStatusPending}, map[string]any{
		"payment_ref": ref,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment reference already linked")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "badge request changed before payment was linked")
	}
	request.PaymentRef = &ref
	return &CreateRequestResult{Request: request, ClientSecret: intent.ClientSecret}, nil
}

// abandonRequest cancels a request whose payment intent could not be opened
// so it does not block a retry.
func (s *service) abandonRequest(ctx context.Context, request *models.BadgeRequest, cause error) {
	meta := request.Metadata.Clone()
	meta[MetaPaymentIntentError] = cause.Error()
	meta[MetaCancelledAt] = s.now().Format(time.RFC3339)
	_, err := s.repo.UpdateRequest(ctx, request.ID, []enums.BadgeRequestStatus{enums.BadgeRequestStatusPending}, map[string]any{
		"status":         enums.BadgeRequestStatusCancelled,
		"payment_status": enums.BadgePaymentStatusCancelled,
		"metadata":       meta,
	})
	if err != nil {
		s.logg.Error(s.logg.WithFixerID(ctx, request.FixerID.String()), "failed to cancel badge request after payment error", err)
	}
}

// StartReview moves a paid request into UNDER_REVIEW for the acting admin.
func (s *service) StartReview(ctx context.Context, input ReviewInput) (*models.BadgeRequest, error) {
	if err := validateReview(input); err != nil {
		return nil, err
	}
	now := s.now()
	var request *models.BadgeRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		request, err = repo.LockRequest(ctx, input.RequestID)
		if err != nil {
			return mapLookupError(err, "badge request not found", "load badge request")
		}
		if request.Status != enums.BadgeRequestStatusPaymentReceived {
			return requestStateError(request)
		}
		affected, err := repo.UpdateRequest(ctx, request.ID, []enums.BadgeRequestStatus{enums.BadgeRequestStatusPaymentReceived}, map[string]any{
			"status":      enums.BadgeRequestStatusUnderReview,
			"reviewed_by": input.AdminUserID,
			"reviewed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start review")
		}
		if affected == 0 {
			return requestStateError(request)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	request.Status = enums.BadgeRequestStatusUnderReview
	request.ReviewedBy = &input.AdminUserID
	request.ReviewedAt = &now
	return request, nil
}

// ApproveBadgeRequest grants the badge. The assignment expires validity_days
// after approval, or never when the badge has no validity window.
func (s *service) ApproveBadgeRequest(ctx context.Context, input ReviewInput) (*ApprovalResult, error) {
	if err := validateReview(input); err != nil {
		return nil, err
	}
	now := s.now()
	out := &ApprovalResult{}
	var badge *models.Badge
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.LockRequest(ctx, input.RequestID)
		if err != nil {
			return mapLookupError(err, "badge request not found", "load badge request")
		}
		if !containsStatus(reviewableStatuses, request.Status) || request.PaymentStatus != enums.BadgePaymentStatusPaid {
			return requestStateError(request)
		}
		badge, err = repo.FindBadge(ctx, request.BadgeID)
		if err != nil {
			return mapLookupError(err, "badge not found", "load badge")
		}

		fields := map[string]any{
			"status":      enums.BadgeRequestStatusApproved,
			"reviewed_by": input.AdminUserID,
			"reviewed_at": now,
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			fields["admin_notes"] = notes
			request.AdminNotes = &notes
		}
		affected, err := repo.UpdateRequest(ctx, request.ID, reviewableStatuses, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve badge request")
		}
		if affected == 0 {
			return requestStateError(request)
		}

		requestID := request.ID
		assignment := &models.BadgeAssignment{
			FixerID:    request.FixerID,
			BadgeID:    badge.ID,
			RequestID:  &requestID,
			Status:     enums.BadgeAssignmentStatusActive,
			AssignedAt: now,
		}
		if badge.ValidityDays != nil && *badge.ValidityDays > 0 {
			expires := now.AddDate(0, 0, *badge.ValidityDays)
			assignment.ExpiresAt = &expires
		}
		if err := repo.CreateAssignment(ctx, assignment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create badge assignment")
		}

		request.Status = enums.BadgeRequestStatusApproved
		request.ReviewedBy = &input.AdminUserID
		request.ReviewedAt = &now
		out.Request = request
		out.Assignment = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	tier, err := s.GetFixerBadgeTier(ctx, out.Request.FixerID)
	if err != nil {
		s.logg.Error(s.logg.WithFixerID(ctx, out.Request.FixerID.String()), "tier recompute failed after badge approval", err)
	} else {
		out.Tier = tier
	}

	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.ToUser(out.Request.FixerID),
		Type:      enums.NotificationTypeBadgeApproved,
		Title:     "Badge approved",
		Body:      fmt.Sprintf("Your %s badge is now active.", badge.Name),
		Link:      "/fixer/badges",
		SendEmail: true,
	})
	return out, nil
}

// RejectBadgeRequest closes a request with a required admin reason.
// TODO: refund the payment intent of rejected paid requests through Stripe
// instead of leaving it to a dashboard refund and the charge.refunded webhook.
func (s *service) RejectBadgeRequest(ctx context.Context, input ReviewInput) (*models.BadgeRequest, error) {
	if err := validateReview(input); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Notes)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}

	now := s.now()
	var request *models.BadgeRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		request, err = repo.LockRequest(ctx, input.RequestID)
		if err != nil {
			return mapLookupError(err, "badge request not found", "load badge request")
		}
		if !containsStatus(reviewableStatuses, request.Status) {
			return requestStateError(request)
		}
		meta := request.Metadata.Clone()
		meta[MetaRejectedAt] = now.Format(time.RFC3339)
		affected, err := repo.UpdateRequest(ctx, request.ID, reviewableStatuses, map[string]any{
			"status":      enums.BadgeRequestStatusRejected,
			"reviewed_by": input.AdminUserID,
			"reviewed_at": now,
			"admin_notes": reason,
			"metadata":    meta,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject badge request")
		}
		if affected == 0 {
			return requestStateError(request)
		}
		request.Status = enums.BadgeRequestStatusRejected
		request.ReviewedBy = &input.AdminUserID
		request.ReviewedAt = &now
		request.AdminNotes = &reason
		request.Metadata = meta
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Message{
		Recipient: notifications.ToUser(request.FixerID),
		Type:      enums.NotificationTypeBadgeRejected,
		Title:     "Badge request rejected",
		Body:      fmt.Sprintf("Your badge request was rejected: %s", reason),
		Link:      "/fixer/badges",
		SendEmail: true,
	})
	return request, nil
}

func validateReview(input ReviewInput) error {
	if input.RequestID == uuid.Nil || input.AdminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request id and admin user id required")
	}
	return nil
}

func requestStateError(request *models.BadgeRequest) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "badge request cannot make this transition").
		WithDetails(map[string]any{
			"status":         request.Status,
			"payment_status": request.PaymentStatus,
		})
}

func containsStatus(set []enums.BadgeRequestStatus, status enums.BadgeRequestStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}
