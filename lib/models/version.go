package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Version is one (service, version label) fact as reported by a provider.
// Rows are never deleted; DeprecatedAt is set when the provider stops
// listing the label and cleared if it lists it again.
type Version struct {
	ID           string       `gorm:"primaryKey;size:36"`
	ServiceKey   string       `gorm:"size:64;not null;uniqueIndex:idx_service_version"`
	VersionLabel string       `gorm:"size:128;not null;uniqueIndex:idx_service_version"`
	CreatedAt    time.Time    `gorm:"not null"`
	ReleasedOn   sql.NullTime
	DeprecatedAt sql.NullTime `gorm:"index"`
}

type Versions []Version

func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

func (v *Version) IsDeprecated() bool {
	return v.DeprecatedAt.Valid
}

// Released reports whether the version is out at t. Versions without a
// release date count as released.
func (v *Version) Released(t time.Time) bool {
	return !v.ReleasedOn.Valid || !v.ReleasedOn.Time.After(t)
}

func Available(db *gorm.DB) *gorm.DB {
	return db.Where("versions.deprecated_at IS NULL")
}

func Unsupported(db *gorm.DB) *gorm.DB {
	return db.Where("versions.deprecated_at IS NOT NULL")
}

// BigBang returns when the service's versions were first observed, which is
// when the service started being tracked.
func BigBang(db *gorm.DB, serviceKey string) (time.Time, error) {
	var first Version
	tx := db.Where("service_key = ?", serviceKey).Order("created_at asc").First(&first)
	if err := tx.Error; err != nil {
		return time.Time{}, err
	}
	return first.CreatedAt, nil
}
