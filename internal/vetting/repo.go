package vetting

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fixersapp/fixers-backend/pkg/db/models"
	"github.com/fixersapp/fixers-backend/pkg/enums"
	"github.com/fixersapp/fixers-backend/pkg/pagination"
)

// Repository persists agent/fixer relationships and their vetting state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error)
	FindAgentByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error)
	LockAgent(ctx context.Context, agentID uuid.UUID) (*models.Agent, error)
	IncrementFixersManaged(ctx context.Context, agentID uuid.UUID) error
	CountActiveFixers(ctx context.Context, agentID uuid.UUID) (int64, error)

	Create(ctx context.Context, rel *models.AgentFixer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AgentFixer, error)
	FindByPair(ctx context.Context, agentID, fixerID uuid.UUID) (*models.AgentFixer, error)
	UpdatePending(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	ListPending(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.AgentFixer, *pagination.Cursor, error)
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

// LockAgent serializes roster changes for one agent; call it inside a transaction.
func (r *repository) LockAgent(ctx context.Context, agentID uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", agentID).
		First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) IncrementFixersManaged(ctx context.Context, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Update("total_fixers_managed", gorm.Expr("total_fixers_managed + 1")).Error
}

func (r *repository) CountActiveFixers(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AgentFixer{}).
		Where("agent_id = ? AND status = ?", agentID, enums.AgentFixerStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) Create(ctx context.Context, rel *models.AgentFixer) error {
	return r.db.WithContext(ctx).Create(rel).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AgentFixer, error) {
	var rel models.AgentFixer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rel).Error; err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *repository) FindByPair(ctx context.Context, agentID, fixerID uuid.UUID) (*models.AgentFixer, error) {
	var rel models.AgentFixer
	if err := r.db.WithContext(ctx).
		Where("agent_id = ? AND fixer_id = ?", agentID, fixerID).
		First(&rel).Error; err != nil {
		return nil, err
	}
	return &rel, nil
}

// UpdatePending writes fields only while the relationship is still PENDING.
// Zero rows means another decision already landed.
func (r *repository) UpdatePending(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AgentFixer{}).
		Where("id = ? AND vet_status = ?", id, enums.VetStatusPending).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListPending returns submitted relationships awaiting a decision, oldest first.
func (r *repository) ListPending(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.AgentFixer, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AgentFixer{}).
		Where("vet_status = ? AND vet_submitted_at IS NOT NULL", enums.VetStatusPending)

	var rows []models.AgentFixer
	if err := pagination.Seek(query, cursor, limit, pagination.OldestFirst).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, limit, func(rel models.AgentFixer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rel.CreatedAt, ID: rel.ID}
	})
	return page, next, nil
}
