package model

import "time"

// PushSubscription holds a browser push subscription bound to one queue
// number. The subscriber is notified when that entry's status changes.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Number    int       `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
