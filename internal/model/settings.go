package model

import "time"

// Settings is the single persisted configuration row kept alongside the
// queue. LastIssuedNumber backs monotonic number allocation;
// CurrentQueueNumber is the last number activated by call-next.
type Settings struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	IsQueueOpen        bool      `json:"isQueueOpen"`
	MaxQueueNumber     int       `json:"maxQueueNumber"`
	MinutesPerCustomer int       `json:"minutesPerCustomer"`
	NextSessionDate    string    `gorm:"size:10" json:"nextSessionDate"`
	CurrentQueueNumber int       `json:"currentQueueNumber"`
	LastIssuedNumber   int       `json:"lastIssuedNumber"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
