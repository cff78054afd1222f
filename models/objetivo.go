package models

import (
	"time"

	"gorm.io/gorm"
)

// Objetivo is a long-term goal made of metas (sub-goals).
type Objetivo struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"size:32;default:pendiente" json:"status"`
	DueDate     *time.Time     `json:"due_date"`
	XPAwarded   bool           `gorm:"default:false" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Metas       []Meta         `json:"metas,omitempty"`
}
