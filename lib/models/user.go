package models

import (
	"gorm.io/gorm"
)

// User is the slice of the account store needed to address digests.
type User struct {
	gorm.Model
	Email    string `gorm:"size:255;uniqueIndex"`
	IsActive bool

	Subscriptions []Subscription
}
