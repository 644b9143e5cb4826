package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fixersapp/fixers-backend/pkg/enums"
)

// Order is the marketplace job record. This service only reads it, except in tests.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	FixerID         uuid.UUID         `gorm:"column:fixer_id;type:uuid;not null;index"`
	ClientID        uuid.UUID         `gorm:"column:client_id;type:uuid;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Amount          decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	ResponseMinutes *int              `gorm:"column:response_minutes"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
