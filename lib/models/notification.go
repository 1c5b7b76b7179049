package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeKind is the lifecycle fact a notification item told the user about.
type ChangeKind string

const (
	ChangeAdded      ChangeKind = "added"
	ChangeDeprecated ChangeKind = "deprecated"
)

func ChangeOf(v *Version) ChangeKind {
	if v.IsDeprecated() {
		return ChangeDeprecated
	}
	return ChangeAdded
}

// Notification is one digest addressed to one user. Initial notifications
// are bookkeeping rows written at subscription time and are never emailed.
type Notification struct {
	ID        string       `gorm:"primaryKey;size:36"`
	UserID    uint         `gorm:"not null;index"`
	CreatedAt time.Time    `gorm:"not null"`
	SentAt    sql.NullTime `gorm:"index"`
	IsInitial bool         `gorm:"not null"`

	Items []NotificationItem
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

type NotificationItem struct {
	ID             uint       `gorm:"primaryKey"`
	NotificationID string     `gorm:"size:36;not null;index"`
	VersionID      string     `gorm:"size:36;not null;index"`
	Change         ChangeKind `gorm:"size:16;not null"`
	CreatedAt      time.Time

	Version Version
}

type NotificationItems []NotificationItem

// NotificationPixel records one open of a digest email.
type NotificationPixel struct {
	ID             uint   `gorm:"primaryKey"`
	NotificationID string `gorm:"size:36;not null;index"`
	CreatedAt      time.Time
	Metadata       datatypes.JSONMap
}
