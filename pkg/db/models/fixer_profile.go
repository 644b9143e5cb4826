package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FixerProfile is the service-provider profile; CreatedAt drives tenure.
type FixerProfile struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (f *FixerProfile) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
