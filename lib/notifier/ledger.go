package notifier

import (
	"context"

	"github.com/fiffu/versionwatch/lib/models"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Ledger answers which lifecycle facts a user has already been told about.
// An item counts once its notification was sent, or when it belongs to the
// initial notification seeded at subscription time. Items of notifications
// that never went out do not count, so their versions stay due.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db}
}

func (l *Ledger) communicated(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&models.NotificationItem{}).
		Select("notification_items.version_id").
		Joins("JOIN notifications ON notifications.id = notification_items.notification_id").
		Where("notifications.user_id = ?", userID).
		Where("(notifications.sent_at IS NOT NULL OR notifications.is_initial = ?)", true)
}

// Announced is a subquery of the version ids the user has been told about in
// any way.
func (l *Ledger) Announced(db *gorm.DB, userID uint) *gorm.DB {
	return l.communicated(db, userID)
}

// AnnouncedDeprecations is a subquery of the version ids the user has been
// told are deprecated.
func (l *Ledger) AnnouncedDeprecations(db *gorm.DB, userID uint) *gorm.DB {
	return l.communicated(db, userID).
		Where("notification_items.change = ?", models.ChangeDeprecated)
}

// Communicated reports whether the user was told the given fact about the
// version.
func (l *Ledger) Communicated(ctx context.Context, userID uint, versionID string, change models.ChangeKind) (bool, error) {
	var count int64
	tx := l.communicated(l.db.WithContext(ctx), userID).
		Where("notification_items.version_id = ? AND notification_items.change = ?", versionID, change).
		Count(&count)
	if err := tx.Error; err != nil {
		return false, errors.Trace(err)
	}
	return count > 0, nil
}

// Unsent lists the non-initial notifications whose delivery never succeeded.
func (l *Ledger) Unsent(ctx context.Context) ([]models.Notification, error) {
	var notifs []models.Notification
	tx := l.db.WithContext(ctx).
		Where("sent_at IS NULL AND is_initial = ?", false).
		Order("created_at").
		Find(&notifs)
	if err := tx.Error; err != nil {
		return nil, errors.Trace(err)
	}
	return notifs, nil
}
