package badges

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
)

// openRequestStatuses are the statuses that still block a second request for the same badge.
var openRequestStatuses = []enums.BadgeRequestStatus{
	enums.BadgeRequestStatusPending,
	enums.BadgeRequestStatusPaymentReceived,
	enums.BadgeRequestStatusUnderReview,
}

// Repository loads badge data and performance aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListActiveBadges(ctx context.Context) ([]models.Badge, error)
	FindBadge(ctx context.Context, id uuid.UUID) (*models.Badge, error)
	CountActiveAssignments(ctx context.Context, fixerID uuid.UUID, now time.Time) (int64, error)
	HasActiveAssignment(ctx context.Context, fixerID, badgeID uuid.UUID, now time.Time) (bool, error)
	CreateAssignment(ctx context.Context, assignment *models.BadgeAssignment) error
	ListLapsedAssignments(ctx context.Context, now time.Time, limit int) ([]models.BadgeAssignment, error)
	MarkAssignmentsExpired(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)

	HasOpenRequest(ctx context.Context, fixerID, badgeID uuid.UUID) (bool, error)
	CreateRequest(ctx context.Context, request *models.BadgeRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.BadgeRequest, error)
	LockRequest(ctx context.Context, id uuid.UUID) (*models.BadgeRequest, error)
	UpdateRequest(ctx context.Context, id uuid.UUID, from []enums.BadgeRequestStatus, fields map[string]any) (int64, error)
	ListStaleRequests(ctx context.Context, cutoff time.Time, limit int) ([]models.BadgeRequest, error)

	Snapshots(ctx context.Context) ([]PerformanceSnapshot, error)
	Snapshot(ctx context.Context, fixerID uuid.UUID) (*PerformanceSnapshot, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveBadges(ctx context.Context) ([]models.Badge, error) {
	var rows []models.Badge
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC, name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindBadge(ctx context.Context, id uuid.UUID) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&badge).Error; err != nil {
		return nil, err
	}
	return &badge, nil
}

func (r *repository) activeAssignments(ctx context.Context, fixerID uuid.UUID, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.BadgeAssignment{}).
		Where("fixer_id = ? AND status = ?", fixerID, enums.BadgeAssignmentStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now)
}

func (r *repository) CountActiveAssignments(ctx context.Context, fixerID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.activeAssignments(ctx, fixerID, now).Count(&count).Error
	return count, err
}

func (r *repository) HasActiveAssignment(ctx context.Context, fixerID, badgeID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := r.activeAssignments(ctx, fixerID, now).Where("badge_id = ?", badgeID).Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.BadgeAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// ListLapsedAssignments returns assignments still marked ACTIVE whose expiry has passed.
func (r *repository) ListLapsedAssignments(ctx context.Context, now time.Time, limit int) ([]models.BadgeAssignment, error) {
	var rows []models.BadgeAssignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.BadgeAssignmentStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkAssignmentsExpired(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.BadgeAssignment{}).
		Where("id IN ? AND status = ? AND expires_at <= ?", ids, enums.BadgeAssignmentStatusActive, now).
		Update("status", enums.BadgeAssignmentStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) HasOpenRequest(ctx context.Context, fixerID, badgeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BadgeRequest{}).
		Where("fixer_id = ? AND badge_id = ? AND status IN ?", fixerID, badgeID, openRequestStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateRequest(ctx context.Context, request *models.BadgeRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.BadgeRequest, error) {
	var req models.BadgeRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// LockRequest loads a badge request FOR UPDATE; call it inside a transaction.
func (r *repository) LockRequest(ctx context.Context, id uuid.UUID) (*models.BadgeRequest, error) {
	var req models.BadgeRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateRequest applies fields only while the request is in one of the from
// statuses. Zero rows means the transition lost to a concurrent writer.
func (r *repository) UpdateRequest(ctx context.Context, id uuid.UUID, from []enums.BadgeRequestStatus, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BadgeRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListStaleRequests returns unpaid PENDING requests created before cutoff.
func (r *repository) ListStaleRequests(ctx context.Context, cutoff time.Time, limit int) ([]models.BadgeRequest, error) {
	var rows []models.BadgeRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			enums.BadgeRequestStatusPending, enums.BadgePaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

type orderAggregate struct {
	FixerID            uuid.UUID
	CompletedJobs      int64
	CancelledJobs      int64
	TotalJobs          int64
	AvgResponseMinutes *float64
}

type reviewAggregate struct {
	FixerID          uuid.UUID
	ReviewCount      int64
	AverageRating    *float64
	SatisfiedReviews int64
}

// Snapshots aggregates the whole fixer population, one row per fixer profile.
func (r *repository) Snapshots(ctx context.Context) ([]PerformanceSnapshot, error) {
	return r.snapshots(ctx, nil)
}

func (r *repository) Snapshot(ctx context.Context, fixerID uuid.UUID) (*PerformanceSnapshot, error) {
	rows, err := r.snapshots(ctx, &fixerID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *repository) snapshots(ctx context.Context, fixerID *uuid.UUID) ([]PerformanceSnapshot, error) {
	var profiles []models.FixerProfile
	profileQuery := r.db.WithContext(ctx).Model(&models.FixerProfile{})
	if fixerID != nil {
		profileQuery = profileQuery.Where("user_id = ?", *fixerID)
	}
	if err := profileQuery.Find(&profiles).Error; err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	var orders []orderAggregate
	orderQuery := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(`fixer_id,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed_jobs,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS cancelled_jobs,
			COUNT(*) AS total_jobs,
			AVG(response_minutes) AS avg_response_minutes`,
			enums.OrderStatusCompleted, enums.OrderStatusCancelled).
		Group("fixer_id")
	if fixerID != nil {
		orderQuery = orderQuery.Where("fixer_id = ?", *fixerID)
	}
	if err := orderQuery.Scan(&orders).Error; err != nil {
		return nil, err
	}

	var reviews []reviewAggregate
	reviewQuery := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select(`fixer_id,
			COUNT(*) AS review_count,
			AVG(rating) AS average_rating,
			SUM(CASE WHEN rating >= ? THEN 1 ELSE 0 END) AS satisfied_reviews`, satisfiedRatingFrom).
		Group("fixer_id")
	if fixerID != nil {
		reviewQuery = reviewQuery.Where("fixer_id = ?", *fixerID)
	}
	if err := reviewQuery.Scan(&reviews).Error; err != nil {
		return nil, err
	}

	byOrder := make(map[uuid.UUID]orderAggregate, len(orders))
	for _, o := range orders {
		byOrder[o.FixerID] = o
	}
	byReview := make(map[uuid.UUID]reviewAggregate, len(reviews))
	for _, rv := range reviews {
		byReview[rv.FixerID] = rv
	}

	out := make([]PerformanceSnapshot, 0, len(profiles))
	for _, p := range profiles {
		snap := PerformanceSnapshot{FixerID: p.UserID, JoinedAt: p.CreatedAt}
		if o, ok := byOrder[p.UserID]; ok {
			snap.CompletedJobs = o.CompletedJobs
			snap.CancelledJobs = o.CancelledJobs
			snap.TotalJobs = o.TotalJobs
			snap.AvgResponseMinutes = o.AvgResponseMinutes
		}
		if rv, ok := byReview[p.UserID]; ok {
			snap.ReviewCount = rv.ReviewCount
			snap.SatisfiedReviews = rv.SatisfiedReviews
			if rv.AverageRating != nil {
				snap.AverageRating = *rv.AverageRating
			}
		}
		out = append(out, snap)
	}
	return out, nil
}
