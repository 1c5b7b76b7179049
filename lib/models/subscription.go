package models

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

type Subscription struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"not null;index:idx_user_service"`
	ServiceKey string `gorm:"size:64;not null;index:idx_user_service"`
	CreatedAt  time.Time
	DisabledAt sql.NullTime
}

type Subscriptions []Subscription

func (s *Subscription) IsActive() bool {
	return !s.DisabledAt.Valid
}

func ActiveSubscriptions(db *gorm.DB) *gorm.DB {
	return db.Where("subscriptions.disabled_at IS NULL")
}
