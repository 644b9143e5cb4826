package stripewebhook

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
)

// Guard is the prior state an update must still observe to apply.
// A nil Status slice skips the status check.
type Guard struct {
	Status        []enums.BadgeRequestStatus
	PaymentStatus enums.BadgePaymentStatus
}

// Repository is the badge request surface the webhook handler mutates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockByPaymentRef(ctx context.Context, paymentRef string) (*models.BadgeRequest, error)
	UpdateRequest(ctx context.Context, id uuid.UUID, guard Guard, fields map[string]any) (int64, error)
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

func (r *repository) LockByPaymentRef(ctx context.Context, paymentRef string) (*models.BadgeRequest, error) {
	var req models.BadgeRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_ref = ?", paymentRef).
		First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) UpdateRequest(ctx context.Context, id uuid.UUID, guard Guard, fields map[string]any) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.BadgeRequest{}).
		Where("id = ? AND payment_status = ?", id, guard.PaymentStatus)
	if len(guard.Status) > 0 {
		query = query.Where("status IN ?", guard.Status)
	}
	result := query.Updates(fields)
	return result.RowsAffected, result.Error
}
