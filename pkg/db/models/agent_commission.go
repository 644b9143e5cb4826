package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/pkg/enums"
)

// AgentCommission is an immutable credit to an agent; only the unpaid to paid
// flip is ever written after insert.
type AgentCommission struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	AgentID      uuid.UUID            `gorm:"column:agent_id;type:uuid;not null;index;uniqueIndex:ux_agent_commissions_order,where:type = 'ORDER_COMMISSION'"`
	OrderID      *uuid.UUID           `gorm:"column:order_id;type:uuid;uniqueIndex:ux_agent_commissions_order,where:type = 'ORDER_COMMISSION'"`
	AgentFixerID *uuid.UUID           `gorm:"column:agent_fixer_id;type:uuid"`
	Type         enums.CommissionType `gorm:"column:type;type:text;not null"`
	Amount       decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Description  string               `gorm:"column:description;type:text;not null;default:''"`
	IsPaid       bool                 `gorm:"column:is_paid;not null;default:false"`
	PaidAt       *time.Time           `gorm:"column:paid_at"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (c *AgentCommission) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
