package models

import (
	"time"

	"gorm.io/gorm"
)

// Alarm stores a user's alarm definition. The actual ringing happens on the
// client through native OS alarm APIs; the server only keeps the catalog.
type Alarm struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"index;not null" json:"user_id"`
	Label      string         `gorm:"size:255" json:"label"`
	RingAt     time.Time      `gorm:"not null" json:"ring_at"`
	RepeatDays string         `gorm:"size:32" json:"repeat_days"` // comma list, e.g. "mon,wed,fri"
	Enabled    bool           `gorm:"default:true" json:"enabled"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
