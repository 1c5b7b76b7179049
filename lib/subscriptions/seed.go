package subscriptions

import (
	"time"

	"github.com/fiffu/versionwatch/lib/models"
	"gorm.io/gorm"
)

// SeedInitialNotification records every stored version of the service as
// already communicated to the user. The notification is never emailed.
func SeedInitialNotification(tx *gorm.DB, userID uint, serviceKey string, now time.Time) (*models.Notification, error) {
	var versions models.Versions
	q := tx.Where("service_key = ?", serviceKey).Order("version_label").Find(&versions)
	if err := q.Error; err != nil {
		return nil, err
	}

	notif := &models.Notification{UserID: userID, CreatedAt: now, IsInitial: true}
	if err := tx.Create(notif).Error; err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return notif, nil
	}

	items := make(models.NotificationItems, len(versions))
	for i := range versions {
		items[i] = models.NotificationItem{
			NotificationID: notif.ID,
			VersionID:      versions[i].ID,
			Change:         models.ChangeOf(&versions[i]),
			CreatedAt:      now,
		}
	}
	if err := tx.Omit("Version").Create(&items).Error; err != nil {
		return nil, err
	}
	notif.Items = items
	return notif, nil
}
