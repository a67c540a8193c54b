package model

import (
	"time"

	"gorm.io/gorm"
)

// Entry status values as persisted. StatusProcessing is never stored: it is
// derived as "waiting at position 1" so ordering stays the single source of
// truth for who is being served.
const (
	StatusWaiting    = "waiting"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// KnownStatuses lists the statuses a caller may request a transition to.
var KnownStatuses = []string{StatusWaiting, StatusCompleted, StatusCancelled}

// BirthDate holds a dual-calendar birth date. At least one representation is
// required at registration; the other is filled in from the calendar
// converter so both are always queryable.
type BirthDate struct {
	SolarYear      int  `json:"solarYear"`
	SolarMonth     int  `json:"solarMonth"`
	SolarDay       int  `json:"solarDay"`
	LunarYear      int  `json:"lunarYear"`
	LunarMonth     int  `json:"lunarMonth"`
	LunarDay       int  `json:"lunarDay"`
	LunarLeapMonth bool `json:"lunarLeapMonth"`
}

// HasSolar reports whether the solar representation is populated.
func (b BirthDate) HasSolar() bool {
	return b.SolarYear != 0 && b.SolarMonth != 0 && b.SolarDay != 0
}

// HasLunar reports whether the lunar representation is populated.
func (b BirthDate) HasLunar() bool {
	return b.LunarYear != 0 && b.LunarMonth != 0 && b.LunarDay != 0
}

// Address is one postal address attached to an entry or a dependent.
type Address struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OwnerID   uint   `gorm:"index;not null" json:"-"`
	OwnerType string `gorm:"size:32;not null" json:"-"`
	Category  string `gorm:"size:32;not null" json:"category"`
	Line      string `gorm:"size:256;not null" json:"line"`
}

// Dependent is a family member registered alongside the main registrant.
type Dependent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EntryID   uint      `gorm:"index;not null" json:"-"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Gender    string    `gorm:"size:8" json:"gender"`
	Relation  string    `gorm:"size:32" json:"relation"`
	Birth     BirthDate `gorm:"embedded;embeddedPrefix:birth_" json:"birth"`
	Addresses []Address `gorm:"polymorphic:Owner;constraint:OnDelete:CASCADE" json:"addresses"`
}

// TopicList is a set of consultation-topic tags, stored as a JSON column.
type TopicList []string

// QueueEntry is one registration in the waiting line.
//
// Position is only meaningful while Status is waiting: the active set keeps a
// contiguous 1..N ordering. Terminal entries retain their last-known position
// for audit. Number is assigned once at registration and never changes.
type QueueEntry struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Number      int            `gorm:"index;not null" json:"number"`
	Status      string         `gorm:"size:16;index;not null;default:waiting" json:"status"`
	Position    int            `gorm:"index;not null" json:"position"`
	Name        string         `gorm:"size:64;not null" json:"name"`
	Phone       string         `gorm:"size:32;index;not null" json:"phone"`
	Email       string         `gorm:"size:128" json:"email,omitempty"`
	Gender      string         `gorm:"size:8" json:"gender"`
	Birth       BirthDate      `gorm:"embedded;embeddedPrefix:birth_" json:"birth"`
	Addresses   []Address      `gorm:"polymorphic:Owner;constraint:OnDelete:CASCADE" json:"addresses"`
	Dependents  []Dependent    `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE" json:"dependents"`
	Topics      TopicList      `gorm:"serializer:json" json:"topics"`
	Remarks     string         `gorm:"size:1024" json:"remarks,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Active reports whether the entry participates in the contiguous ordering.
func (e *QueueEntry) Active() bool {
	return e.Status == StatusWaiting
}

// DisplayStatus returns the customer-facing status, deriving "processing"
// for the active head instead of storing it.
func (e *QueueEntry) DisplayStatus() string {
	if e.Status == StatusWaiting && e.Position == 1 {
		return StatusProcessing
	}
	return e.Status
}
