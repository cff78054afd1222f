package models

import "time"

// Action is a row of the XP action catalog: how many points an action is
// worth and how many times per day it may be rewarded (0 = unlimited).
// The table is seeded from configuration at boot and edited through the
// admin API; the in-memory catalog consumed by the awarder is reloaded
// from it, so there is a single source of truth.
type Action struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Points      int       `gorm:"not null" json:"points"`
	DailyCap    int       `gorm:"not null;default:0" json:"daily_cap"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
