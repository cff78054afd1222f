package models

import "time"

// XPTransaction is an append-only ledger row recording a single XP award.
type XPTransaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"account_id"`
	ActionKey string    `gorm:"size:64;not null" json:"action_key"`
	Points    int       `gorm:"not null" json:"points"`
	Reference string    `gorm:"size:64" json:"reference"` // e.g. "meta:42" or a request uuid
	CreatedAt time.Time `json:"created_at"`
}
