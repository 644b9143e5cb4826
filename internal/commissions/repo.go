package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	"github.com/fixersapp/fixers-backend/pkg/pagination"
)

// Repository manages persistence for agent wallets and commission rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error)
	FindAgentByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error)
	CreditWallet(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error
	DebitWallet(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) (bool, error)

	CreateCommission(ctx context.Context, commission *models.AgentCommission) error
	HasOrderCommission(ctx context.Context, agentID, orderID uuid.UUID) (bool, error)
	MarkPaid(ctx context.Context, agentID uuid.UUID, commissionIDs []uuid.UUID, now time.Time) (int64, error)
	Totals(ctx context.Context, agentID uuid.UUID) ([]commissionTotal, error)
	ListSince(ctx context.Context, agentID uuid.UUID, since time.Time) ([]models.AgentCommission, error)
	List(ctx context.Context, params listCommissionsParams) ([]models.AgentCommission, *pagination.Cursor, error)

	FindAgentFixer(ctx context.Context, agentFixerID uuid.UUID) (*models.AgentFixer, error)
	LockAgentFixer(ctx context.Context, agentFixerID uuid.UUID) (*models.AgentFixer, error)
	MarkBonusPaid(ctx context.Context, agentFixerID, orderID uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commissions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type commissionTotal struct {
	Type   enums.CommissionType
	IsPaid bool
	Count  int64
	Total  decimal.Decimal
}

type listCommissionsParams struct {
	AgentID uuid.UUID
	Type    *enums.CommissionType
	IsPaid  *bool
	Limit   int
	Cursor  *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) FindAgentByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", agentID).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// CreditWallet applies a relative delta so concurrent credits never overwrite each other.
func (r *repository) CreditWallet(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Updates(map[string]any{
			"wallet_balance": gorm.Expr("wallet_balance + ?", amount),
			"total_earned":   gorm.Expr("total_earned + ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DebitWallet withdraws amount only while the balance covers it. It reports
// false, with nothing written, when the guard rejects the update.
func (r *repository) DebitWallet(ctx context.Context, agentID uuid.UUID, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ? AND wallet_balance >= ?", agentID, amount).
		Updates(map[string]any{
			"wallet_balance":  gorm.Expr("wallet_balance - ?", amount),
			"total_withdrawn": gorm.Expr("total_withdrawn + ?", amount),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateCommission(ctx context.Context, commission *models.AgentCommission) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

func (r *repository) HasOrderCommission(ctx context.Context, agentID, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AgentCommission{}).
		Where("agent_id = ? AND order_id = ? AND type = ?", agentID, orderID, enums.CommissionTypeOrder).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) MarkPaid(ctx context.Context, agentID uuid.UUID, commissionIDs []uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AgentCommission{}).
		Where("agent_id = ? AND id IN ? AND is_paid = ?", agentID, commissionIDs, false).
		Updates(map[string]any{
			"is_paid": true,
			"paid_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) Totals(ctx context.Context, agentID uuid.UUID) ([]commissionTotal, error) {
	var rows []commissionTotal
	if err := r.db.WithContext(ctx).
		Model(&models.AgentCommission{}).
		Select("type, is_paid, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("agent_id = ?", agentID).
		Group("type, is_paid").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListSince(ctx context.Context, agentID uuid.UUID, since time.Time) ([]models.AgentCommission, error) {
	var rows []models.AgentCommission
	if err := r.db.WithContext(ctx).
		Where("agent_id = ? AND created_at >= ?", agentID, since).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context, params listCommissionsParams) ([]models.AgentCommission, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.AgentCommission{}).Where("agent_id = ?", params.AgentID)
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.IsPaid != nil {
		query = query.Where("is_paid = ?", *params.IsPaid)
	}

	var rows []models.AgentCommission
	if err := pagination.Seek(query, params.Cursor, params.Limit, pagination.NewestFirst).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params.Limit, func(c models.AgentCommission) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return page, next, nil
}

func (r *repository) FindAgentFixer(ctx context.Context, agentFixerID uuid.UUID) (*models.AgentFixer, error) {
	var rel models.AgentFixer
	if err := r.db.WithContext(ctx).Where("id = ?", agentFixerID).First(&rel).Error; err != nil {
		return nil, err
	}
	return &rel, nil
}

// LockAgentFixer loads the relationship row FOR UPDATE; call it inside a transaction.
func (r *repository) LockAgentFixer(ctx context.Context, agentFixerID uuid.UUID) (*models.AgentFixer, error) {
	var rel models.AgentFixer
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", agentFixerID).
		First(&rel).Error; err != nil {
		return nil, err
	}
	return &rel, nil
}

// MarkBonusPaid flips bonus_paid exactly once; false means another writer won.
func (r *repository) MarkBonusPaid(ctx context.Context, agentFixerID, orderID uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AgentFixer{}).
		Where("id = ? AND bonus_paid = ?", agentFixerID, false).
		Updates(map[string]any{
			"bonus_paid":     true,
			"bonus_amount":   decimal.NewNullDecimal(amount),
			"bonus_paid_at":  now,
			"first_order_id": gorm.Expr("COALESCE(first_order_id, ?)", orderID),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
