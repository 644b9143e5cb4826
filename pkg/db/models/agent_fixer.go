package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/pkg/enums"
)

// AgentFixer links an agent to a fixer they manage and carries the vetting
// decision plus the one-time onboarding bonus state.
type AgentFixer struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AgentID         uuid.UUID              `gorm:"column:agent_id;type:uuid;not null;uniqueIndex:ux_agent_fixers_pair"`
	FixerID         uuid.UUID              `gorm:"column:fixer_id;type:uuid;not null;uniqueIndex:ux_agent_fixers_pair"`
	Status          enums.AgentFixerStatus `gorm:"column:status;type:text;not null"`
	VetStatus       enums.VetStatus        `gorm:"column:vet_status;type:text;not null"`
	VetSubmittedAt  *time.Time             `gorm:"column:vet_submitted_at"`
	VetNotes        *string                `gorm:"column:vet_notes;type:text"`
	VettedAt        *time.Time             `gorm:"column:vetted_at"`
	VettedBy        *uuid.UUID             `gorm:"column:vetted_by;type:uuid"`
	RejectionReason *string                `gorm:"column:rejection_reason;type:text"`
	BonusPaid       bool                   `gorm:"column:bonus_paid;not null;default:false"`
	BonusAmount     decimal.NullDecimal    `gorm:"column:bonus_amount;type:numeric(12,2)"`
	BonusPaidAt     *time.Time             `gorm:"column:bonus_paid_at"`
	FirstOrderID    *uuid.UUID             `gorm:"column:first_order_id;type:uuid"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *AgentFixer) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// CanReceiveWork reports whether the relationship allows commission-bearing work.
func (a AgentFixer) CanReceiveWork() bool {
	return a.Status == enums.AgentFixerStatusActive && a.VetStatus == enums.VetStatusApproved
}
