package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/fixersapp/fixers-backend/pkg/db/types"
	"github.com/fixersapp/fixers-backend/pkg/enums"
)

// Badge is a purchasable credential. Criteria holds the optional thresholds
// minJobs, minRating, maxResponseMinutes and maxCancellationRate.
type Badge struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;type:text;not null"`
	Slug         string          `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Description  string          `gorm:"column:description;type:text;not null;default:''"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ValidityDays *int            `gorm:"column:validity_days"`
	Criteria     dbtypes.JSONMap `gorm:"column:criteria;type:jsonb"`
	IsActive     bool            `gorm:"column:is_active;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (b *Badge) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BadgeAssignment grants a badge to a fixer. A nil ExpiresAt never expires.
type BadgeAssignment struct {
	ID         uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	FixerID    uuid.UUID                   `gorm:"column:fixer_id;type:uuid;not null;index"`
	BadgeID    uuid.UUID                   `gorm:"column:badge_id;type:uuid;not null"`
	RequestID  *uuid.UUID                  `gorm:"column:request_id;type:uuid"`
	Status     enums.BadgeAssignmentStatus `gorm:"column:status;type:text;not null"`
	AssignedAt time.Time                   `gorm:"column:assigned_at;not null"`
	ExpiresAt  *time.Time                  `gorm:"column:expires_at"`
	CreatedAt  time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (b *BadgeAssignment) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// IsActiveAt reports whether the assignment counts toward the fixer's tier at now.
func (b BadgeAssignment) IsActiveAt(now time.Time) bool {
	if b.Status != enums.BadgeAssignmentStatusActive {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// BadgeRequest is a fixer's paid application for a badge. PaymentRef holds the
// Stripe PaymentIntent id.
type BadgeRequest struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	FixerID       uuid.UUID                `gorm:"column:fixer_id;type:uuid;not null;index"`
	BadgeID       uuid.UUID                `gorm:"column:badge_id;type:uuid;not null"`
	PaymentRef    *string                  `gorm:"column:payment_ref;type:text;uniqueIndex"`
	PaymentStatus enums.BadgePaymentStatus `gorm:"column:payment_status;type:text;not null"`
	Status        enums.BadgeRequestStatus `gorm:"column:status;type:text;not null"`
	PaymentAmount decimal.Decimal          `gorm:"column:payment_amount;type:numeric(12,2);not null"`
	PaidAt        *time.Time               `gorm:"column:paid_at"`
	ReviewedBy    *uuid.UUID               `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt    *time.Time               `gorm:"column:reviewed_at"`
	AdminNotes    *string                  `gorm:"column:admin_notes;type:text"`
	Metadata      dbtypes.JSONMap          `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *BadgeRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
