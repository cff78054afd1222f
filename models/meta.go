package models

import (
	"time"

	"gorm.io/gorm"
)

// Meta status values as sent by the client.
const (
	MetaStatusPendiente  = "pendiente"
	MetaStatusEnProgreso = "en_progreso"
	MetaStatusCompletada = "completada"
)

// ValidMetaStatus reports whether s is one of the known status values.
func ValidMetaStatus(s string) bool {
	return s == MetaStatusPendiente || s == MetaStatusEnProgreso || s == MetaStatusCompletada
}

// Meta is a sub-goal belonging to an objetivo. Completing a meta is the
// trigger for the deferred XP award flow; XPAwarded guards the award so a
// completion grants experience at most once, no matter how many times the
// row is saved in the completed state.
type Meta struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ObjetivoID  uint           `gorm:"index;not null" json:"objetivo_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"size:32;default:pendiente" json:"status"`
	XPAwarded   bool           `gorm:"default:false" json:"-"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Completed reports whether the meta is in its terminal state.
func (m *Meta) Completed() bool {
	return m.Status == MetaStatusCompletada
}

// MetaUpdate is the partial-update payload accepted by the meta update
// endpoint and carried into the deferred completion worker. Nil fields were
// absent from the request.
type MetaUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}
