package badges

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/internal/notifications"
	"github.com/fixersapp/fixers-backend/pkg/db/dbtest"
	"github.com/fixersapp/fixers-backend/pkg/db/models"
	dbtypes "github.com/fixersapp/fixers-backend/pkg/db/types"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	pkgerrors "github.com/fixersapp/fixers-backend/pkg/errors"
	"github.com/fixersapp/fixers-backend/pkg/logger"
	"github.com/fixersapp/fixers-backend/pkg/stripe"
)

type fakePayments struct {
	mu        sync.Mutex
	err       error
	calls     []stripe.PaymentIntentInput
	cancelled []string
}

func (f *fakePayments) CancelPaymentIntent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakePayments) CreatePaymentIntent(_ context.Context, input stripe.PaymentIntentInput) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{
		ID:           "pi_" + input.Metadata[StripeMetaRequestID],
		ClientSecret: "secret_" + input.Metadata[StripeMetaRequestID],
		Status:       "requires_payment_method",
	}, nil
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notifications.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *captureNotifier) types() []enums.NotificationType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]enums.NotificationType, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m.Type)
	}
	return out
}

type harness struct {
	svc      Service
	conn     *gorm.DB
	payments *fakePayments
	notifier *captureNotifier
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	h := &harness{
		conn:     conn,
		payments: &fakePayments{},
		notifier: &captureNotifier{},
		now:      time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:                NewRepository(conn),
		Tx:                  client,
		Payments:            h.payments,
		Notifier:            h.notifier,
		Logger:              logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		TopPerformerPercent: 5,
		Clock:               func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) fixer(t *testing.T, joined time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.conn.Create(&models.FixerProfile{UserID: id, DisplayName: "fixer", CreatedAt: joined}).Error)
	return id
}

func (h *harness) orders(t *testing.T, fixerID uuid.UUID, status enums.OrderStatus, n int, response int) {
	t.Helper()
	for i := 0; i < n; i++ {
		minutes := response
		require.NoError(t, h.conn.Create(&models.Order{
			FixerID:         fixerID,
			ClientID:        uuid.New(),
			Status:          status,
			Amount:          decimal.NewFromInt(100),
			ResponseMinutes: &minutes,
		}).Error)
	}
}

func (h *harness) reviews(t *testing.T, fixerID uuid.UUID, ratings ...int) {
	t.Helper()
	for _, r := range ratings {
		require.NoError(t, h.conn.Create(&models.Review{OrderID: uuid.New(), FixerID: fixerID, Rating: r}).Error)
	}
}

func (h *harness) assign(t *testing.T, fixerID uuid.UUID, n int, expires *time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, h.conn.Create(&models.BadgeAssignment{
			FixerID:    fixerID,
			BadgeID:    uuid.New(),
			Status:     enums.BadgeAssignmentStatusActive,
			AssignedAt: h.now.AddDate(0, -1, 0),
			ExpiresAt:  expires,
		}).Error)
	}
}

func (h *harness) badge(t *testing.T, price string, validity *int, criteria dbtypes.JSONMap) *models.Badge {
	t.Helper()
	b := &models.Badge{
		Name:         "Verified Pro",
		Slug:         "verified-pro-" + uuid.NewString()[:8],
		Price:        decimal.RequireFromString(price),
		ValidityDays: validity,
		Criteria:     criteria,
		IsActive:     true,
	}
	require.NoError(t, h.conn.Create(b).Error)
	return b
}

func (h *harness) markPaid(t *testing.T, requestID uuid.UUID) {
	t.Helper()
	require.NoError(t, h.conn.Model(&models.BadgeRequest{}).Where("id = ?", requestID).Updates(map[string]any{
		"status":         enums.BadgeRequestStatusPaymentReceived,
		"payment_status": enums.BadgePaymentStatusPaid,
		"paid_at":        h.now,
	}).Error)
}

func TestGetFixerBadgeTier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	joined := h.now.AddDate(0, -6, 0)

	star := h.fixer(t, joined)
	h.orders(t, star, enums.OrderStatusCompleted, 12, 10)
	h.reviews(t, star, 5, 5, 5, 4)
	h.assign(t, star, 5, nil)

	steady := h.fixer(t, joined)
	h.orders(t, steady, enums.OrderStatusCompleted, 2, 200)
	h.reviews(t, steady, 3)
	h.assign(t, steady, 5, nil)

	silver := h.fixer(t, joined)
	h.assign(t, silver, 3, nil)

	lapsed := h.fixer(t, joined)
	past := h.now.Add(-time.Hour)
	future := h.now.Add(24 * time.Hour)
	h.assign(t, lapsed, 4, &past)
	h.assign(t, lapsed, 1, &future)

	for i := 0; i < 16; i++ {
		h.fixer(t, joined)
	}

	cases := []struct {
		fixer uuid.UUID
		tier  enums.BadgeTier
		count int
		top   bool
	}{
		{star, enums.BadgeTierPlatinum, 5, true},
		{steady, enums.BadgeTierGold, 5, false},
		{silver, enums.BadgeTierSilver, 3, false},
		{lapsed, enums.BadgeTierBronze, 1, false},
		{uuid.New(), enums.BadgeTierNone, 0, false},
	}
	for _, tc := range cases {
		got, err := h.svc.GetFixerBadgeTier(ctx, tc.fixer)
		require.NoError(t, err)
		assert.Equal(t, tc.tier, got.Tier)
		assert.Equal(t, tc.count, got.ActiveBadges)
		assert.Equal(t, tc.top, got.TopPerformer)
	}

	ranking, err := h.svc.CheckTopPerformerStatus(ctx, star)
	require.NoError(t, err)
	assert.Equal(t, 20, ranking.Population)
	assert.Equal(t, 1, ranking.Cutoff)
	assert.Equal(t, 0, ranking.Rank)

	_, err = h.svc.CheckTopPerformerStatus(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCheckQualityPerformanceCriteria(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixer := h.fixer(t, h.now.AddDate(-1, 0, 0))
	h.orders(t, fixer, enums.OrderStatusCompleted, 3, 30)
	h.orders(t, fixer, enums.OrderStatusCancelled, 1, 30)
	h.reviews(t, fixer, 5, 4)

	strict := h.badge(t, "49.99", nil, dbtypes.JSONMap{"minJobs": 5, "minRating": 4.0, "maxCancellationRate": 10})
	res, err := h.svc.CheckQualityPerformanceCriteria(ctx, fixer, strict.ID)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Len(t, res.Unmet, 2)
	assert.EqualValues(t, 3, res.Snapshot.CompletedJobs)
	assert.InDelta(t, 4.5, res.Snapshot.AverageRating, 1e-9)
	require.NotNil(t, res.Snapshot.AvgResponseMinutes)
	assert.InDelta(t, 30, *res.Snapshot.AvgResponseMinutes, 1e-9)

	lenient := h.badge(t, "19.00", nil, dbtypes.JSONMap{"minJobs": 3, "maxResponseMinutes": 45})
	res, err = h.svc.CheckQualityPerformanceCriteria(ctx, fixer, lenient.ID)
	require.NoError(t, err)
	assert.True(t, res.Eligible)

	_, err = h.svc.CheckQualityPerformanceCriteria(ctx, uuid.New(), lenient.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.CheckQualityPerformanceCriteria(ctx, fixer, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateBadgeRequestOpensPaymentIntent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixer := h.fixer(t, h.now.AddDate(-1, 0, 0))
	badge := h.badge(t, "49.99", nil, nil)

	res, err := h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Request.PaymentRef)
	assert.Equal(t, "pi_"+res.Request.ID.String(), *res.Request.PaymentRef)
	assert.Equal(t, "secret_"+res.Request.ID.String(), res.ClientSecret)
	assert.Equal(t, enums.BadgeRequestStatusPending, res.Request.Status)

	require.Len(t, h.payments.calls, 1)
	call := h.payments.calls[0]
	assert.True(t, decimal.RequireFromString("49.99").Equal(call.Amount))
	assert.Equal(t, fixer.String(), call.Metadata[StripeMetaFixerID])
	assert.Equal(t, "badge-request-"+res.Request.ID.String(), call.IdempotencyKey)

	var stored models.BadgeRequest
	require.NoError(t, h.conn.First(&stored, "id = ?", res.Request.ID).Error)
	require.NotNil(t, stored.PaymentRef)
	assert.Equal(t, 0, stored.Metadata.Int(MetaFailedPaymentAttempts))

	_, err = h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateBadgeRequestPaymentFailureDoesNotBlockRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixer := h.fixer(t, h.now)
	badge := h.badge(t, "10.00", nil, nil)

	h.payments.err = errors.New("stripe down")
	_, err := h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)

	var cancelled models.BadgeRequest
	require.NoError(t, h.conn.Where("fixer_id = ?", fixer).First(&cancelled).Error)
	assert.Equal(t, enums.BadgeRequestStatusCancelled, cancelled.Status)
	assert.Equal(t, "stripe down", cancelled.Metadata[MetaPaymentIntentError])

	h.payments.err = nil
	_, err = h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.NoError(t, err)
}

// racingRepository passes the open-request check and then loses the insert
// to a concurrent create, as Postgres reports it.
type racingRepository struct {
	Repository
}

func (r racingRepository) WithTx(tx *gorm.DB) Repository {
	return racingRepository{Repository: r.Repository.WithTx(tx)}
}

func (r racingRepository) HasOpenRequest(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (r racingRepository) CreateRequest(context.Context, *models.BadgeRequest) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: openRequestIndex, Message: "duplicate key value violates unique constraint"}
}

func TestCreateBadgeRequestConcurrentCreateIsConflict(t *testing.T) {
	h := newHarness(t)
	client, conn := dbtest.Client(t)
	h.conn = conn
	svc, err := NewService(ServiceParams{
		Repo:                racingRepository{Repository: NewRepository(conn)},
		Tx:                  client,
		Payments:            h.payments,
		Notifier:            h.notifier,
		Logger:              logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		TopPerformerPercent: 5,
		Clock:               func() time.Time { return h.now },
	})
	require.NoError(t, err)

	fixer := h.fixer(t, h.now)
	badge := h.badge(t, "10.00", nil, nil)
	_, err = svc.CreateBadgeRequest(context.Background(), CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Empty(t, h.payments.calls)
}

func TestCreateBadgeRequestGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixer := h.fixer(t, h.now)

	strict := h.badge(t, "10.00", nil, dbtypes.JSONMap{"minJobs": 50})
	_, err := h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: strict.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	inactive := h.badge(t, "10.00", nil, nil)
	require.NoError(t, h.conn.Model(&models.Badge{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)
	_, err = h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: inactive.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	free := h.badge(t, "0", nil, nil)
	res, err := h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: free.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.BadgeRequestStatusPaymentReceived, res.Request.Status)
	assert.Equal(t, enums.BadgePaymentStatusPaid, res.Request.PaymentStatus)
	assert.Empty(t, h.payments.calls)

	assert.Empty(t, h.notifier.types())
}

func TestBadgeRequestReviewFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := uuid.New()
	fixer := h.fixer(t, h.now)
	validity := 30
	badge := h.badge(t, "25.00", &validity, nil)

	res, err := h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.NoError(t, err)
	requestID := res.Request.ID

	_, err = h.svc.ApproveBadgeRequest(ctx, ReviewInput{RequestID: requestID, AdminUserID: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "unpaid request must not be approved")

	h.markPaid(t, requestID)

	reviewing, err := h.svc.StartReview(ctx, ReviewInput{RequestID: requestID, AdminUserID: admin})
	require.NoError(t, err)
	assert.Equal(t, enums.BadgeRequestStatusUnderReview, reviewing.Status)

	_, err = h.svc.StartReview(ctx, ReviewInput{RequestID: requestID, AdminUserID: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	approved, err := h.svc.ApproveBadgeRequest(ctx, ReviewInput{RequestID: requestID, AdminUserID: admin, Notes: "portfolio checked"})
	require.NoError(t, err)
	assert.Equal(t, enums.BadgeRequestStatusApproved, approved.Request.Status)
	require.NotNil(t, approved.Assignment.ExpiresAt)
	assert.True(t, approved.Assignment.ExpiresAt.Equal(h.now.AddDate(0, 0, 30)))
	require.NotNil(t, approved.Tier)
	assert.Equal(t, enums.BadgeTierBronze, approved.Tier.Tier)
	assert.Contains(t, h.notifier.types(), enums.NotificationTypeBadgeApproved)

	_, err = h.svc.ApproveBadgeRequest(ctx, ReviewInput{RequestID: requestID, AdminUserID: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = h.svc.RejectBadgeRequest(ctx, ReviewInput{RequestID: requestID, AdminUserID: admin, Notes: "too late"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var assignments int64
	require.NoError(t, h.conn.Model(&models.BadgeAssignment{}).Where("fixer_id = ?", fixer).Count(&assignments).Error)
	assert.EqualValues(t, 1, assignments)
}

func TestRejectBadgeRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := uuid.New()
	fixer := h.fixer(t, h.now)
	badge := h.badge(t, "25.00", nil, nil)

	res, err := h.svc.CreateBadgeRequest(ctx, CreateRequestInput{FixerID: fixer, BadgeID: badge.ID})
	require.NoError(t, err)
	h.markPaid(t, res.Request.ID)

	_, err = h.svc.RejectBadgeRequest(ctx, ReviewInput{RequestID: res.Request.ID, AdminUserID: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	rejected, err := h.svc.RejectBadgeRequest(ctx, ReviewInput{RequestID: res.Request.ID, AdminUserID: admin, Notes: "photos unclear"})
	require.NoError(t, err)
	assert.Equal(t, enums.BadgeRequestStatusRejected, rejected.Status)
	require.NotNil(t, rejected.AdminNotes)
	assert.Equal(t, "photos unclear", *rejected.AdminNotes)
	assert.Contains(t, h.notifier.types(), enums.NotificationTypeBadgeRejected)

	_, err = h.svc.RejectBadgeRequest(ctx, ReviewInput{RequestID: uuid.New(), AdminUserID: admin, Notes: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestExpireLapsedAssignments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixer := h.fixer(t, h.now)
	past := h.now.Add(-time.Minute)
	future := h.now.Add(time.Hour)
	h.assign(t, fixer, 2, &past)
	h.assign(t, fixer, 1, &future)
	h.assign(t, fixer, 1, nil)

	expired, err := h.svc.ExpireLapsedAssignments(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, expired)
	assert.Equal(t, []enums.NotificationType{enums.NotificationTypeBadgeExpired}, h.notifier.types())

	again, err := h.svc.ExpireLapsedAssignments(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, again)

	tier, err := h.svc.GetFixerBadgeTier(ctx, fixer)
	require.NoError(t, err)
	assert.Equal(t, 2, tier.ActiveBadges)
}

func TestExpireStaleRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fixer := h.fixer(t, h.now)

	staleRef := "pi_stale"
	stale := &models.BadgeRequest{
		FixerID:       fixer,
		BadgeID:       uuid.New(),
		PaymentRef:    &staleRef,
		PaymentStatus: enums.BadgePaymentStatusPending,
		Status:        enums.BadgeRequestStatusPending,
		PaymentAmount: decimal.NewFromInt(10),
		Metadata:      dbtypes.JSONMap{MetaFailedPaymentAttempts: 1},
		CreatedAt:     h.now.Add(-8 * 24 * time.Hour),
	}
	fresh := &models.BadgeRequest{
		FixerID:       fixer,
		BadgeID:       uuid.New(),
		PaymentStatus: enums.BadgePaymentStatusPending,
		Status:        enums.BadgeRequestStatusPending,
		PaymentAmount: decimal.NewFromInt(10),
		CreatedAt:     h.now.Add(-time.Hour),
	}
	require.NoError(t, h.conn.Create(stale).Error)
	require.NoError(t, h.conn.Create(fresh).Error)

	_, err := h.svc.ExpireStaleRequests(ctx, time.Minute, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	expired, err := h.svc.ExpireStaleRequests(ctx, 7*24*time.Hour, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	var reloaded models.BadgeRequest
	require.NoError(t, h.conn.First(&reloaded, "id = ?", stale.ID).Error)
	assert.Equal(t, enums.BadgeRequestStatusExpired, reloaded.Status)
	assert.Equal(t, staleRequestReason, reloaded.Metadata[MetaExpiredReason])
	assert.Equal(t, 1, reloaded.Metadata.Int(MetaFailedPaymentAttempts))
	assert.Equal(t, []string{"pi_stale"}, h.payments.cancelled, "the stale intent can no longer be confirmed")

	require.NoError(t, h.conn.First(&reloaded, "id = ?", fresh.ID).Error)
	assert.Equal(t, enums.BadgeRequestStatusPending, reloaded.Status)
}
