package badges

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
)

const (
	defaultExpiryBatch     = 500
	staleRequestReason     = "payment not completed in time"
	staleRequestMinimumAge = time.Hour
)

// ExpireLapsedAssignments flips ACTIVE assignments past their expiry to
// EXPIRED and tells each affected fixer once.
func (s *service) ExpireLapsedAssignments(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	now := s.now()

	var (
		expired int64
		fixers  []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.ListLapsedAssignments(ctx, now, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lapsed assignments")
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		seen := map[uuid.UUID]struct{}{}
		for _, row := range rows {
			ids = append(ids, row.ID)
			if _, ok := seen[row.FixerID]; !ok {
				seen[row.FixerID] = struct{}{}
				fixers = append(fixers, row.FixerID)
			}
		}
		expired, err = repo.MarkAssignmentsExpired(ctx, ids, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire assignments")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, fixerID := range fixers {
		s.notifier.Notify(ctx, notifications.Message{
			Recipient: notifications.ToUser(fixerID),
			Type:      enums.NotificationTypeBadgeExpired,
			Title:     "Badge expired",
			Body:      "One of your badges has expired. Renew it to keep your tier.",
			Link:      "/fixer/badges",
			SendEmail: true,
		})
	}
	return expired, nil
}

// ExpireStaleRequests closes unpaid PENDING requests older than olderThan and
// cancels their payment intents. Each row transitions on its own guard so a
// payment landing mid-sweep wins.
func (s *service) ExpireStaleRequests(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	if olderThan < staleRequestMinimumAge {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "stale request age must be at least one hour")
	}
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	now := s.now()

	rows, err := s.repo.ListStaleRequests(ctx, now.Add(-olderThan), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale badge requests")
	}

	var expired int64
	for i := range rows {
		row := rows[i]
		meta := row.Metadata.Clone()
		meta[MetaExpiredAt] = now.Format(time.RFC3339)
		meta[MetaExpiredReason] = staleRequestReason

		affected, err := s.repo.UpdateRequest(ctx, row.ID, []enums.BadgeRequestStatus{enums.BadgeRequestStatusPending}, map[string]any{
			"status":   enums.BadgeRequestStatusExpired,
			"metadata": meta,
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire badge request")
		}
		if affected == 0 {
			continue
		}
		expired++
		s.cancelIntent(ctx, &row)
		s.notifier.Notify(ctx, notifications.Message{
			Recipient: notifications.ToUser(row.FixerID),
			Type:      enums.NotificationTypeBadgeRequestExpired,
			Title:     "Badge request expired",
			Body:      "Your badge request expired because the payment was not completed.",
			Link:      "/fixer/badges",
		})
	}
	return expired, nil
}

// cancelIntent voids the Stripe intent of a request closed before payment.
// A failure is logged; a payment that still lands is recorded by the webhook.
func (s *service) cancelIntent(ctx context.Context, request *models.BadgeRequest) {
	if request.PaymentRef == nil || *request.PaymentRef == "" {
		return
	}
	if err := s.payments.CancelPaymentIntent(ctx, *request.PaymentRef); err != nil {
		ctx = s.logg.WithBadgeRequestID(ctx, request.ID.String())
		s.logg.Error(s.logg.WithField(ctx, "payment_ref", *request.PaymentRef), "failed to cancel payment intent", err)
	}
}
