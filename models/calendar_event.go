package models

import (
	"time"

	"gorm.io/gorm"
)

// CalendarEvent is an entry on a user's calendar.
type CalendarEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	StartsAt    time.Time      `gorm:"index;not null" json:"starts_at"`
	EndsAt      time.Time      `json:"ends_at"`
	AllDay      bool           `gorm:"default:false" json:"all_day"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
