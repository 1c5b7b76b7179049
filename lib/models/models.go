package models

// All lists every table owned by versionwatch, in migration order.
func All() []any {
	return []any{
		&Version{},
		&User{},
		&Subscription{},
		&Notification{},
		&NotificationItem{},
		&NotificationPixel{},
	}
}
