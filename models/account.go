package models

import "time"

// Account holds the gamification state for a user: cumulative experience
// points and the level derived from them. One row is created per user at
// registration and is only ever mutated by the XP awarder.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalXP   int64     `gorm:"not null;default:0" json:"total_xp"`
	Level     int       `gorm:"not null;default:1" json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
