package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Agent is a reseller managing fixers on commission. WalletBalance always
// equals TotalEarned minus TotalWithdrawn.
type Agent struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	CommissionPercentage decimal.Decimal `gorm:"column:commission_percentage;type:numeric(5,2);not null"`
	WalletBalance        decimal.Decimal `gorm:"column:wallet_balance;type:numeric(12,2);not null;default:0"`
	TotalEarned          decimal.Decimal `gorm:"column:total_earned;type:numeric(12,2);not null;default:0"`
	TotalWithdrawn       decimal.Decimal `gorm:"column:total_withdrawn;type:numeric(12,2);not null;default:0"`
	MaxFixers            int             `gorm:"column:max_fixers;not null"`
	MaxClients           int             `gorm:"column:max_clients;not null"`
	FixerBonusEnabled    bool            `gorm:"column:fixer_bonus_enabled;not null"`
	TotalFixersManaged   int             `gorm:"column:total_fixers_managed;not null;default:0"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Agent) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
