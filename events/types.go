package events

import "github.com/tidyapp/tidy/models"

// Event names. Listeners subscribe by name; publishers use the typed structs.
const (
	NoteCreatedName       = "note.created"
	AlarmCreatedName      = "alarm.created"
	CalendarCreatedName   = "calendar_event.created"
	ObjetivoCreatedName   = "objetivo.created"
	ObjetivoCompletedName = "objetivo.completed"
	MetaCompletedName     = "meta.completed"
)

// NoteCreated fires after a note row is persisted.
type NoteCreated struct {
	UserID uint
	NoteID uint
}

func (NoteCreated) Name() string { return NoteCreatedName }

// AlarmCreated fires after an alarm row is persisted.
type AlarmCreated struct {
	UserID  uint
	AlarmID uint
}

func (AlarmCreated) Name() string { return AlarmCreatedName }

// CalendarCreated fires after a calendar event row is persisted.
type CalendarCreated struct {
	UserID  uint
	EventID uint
}

func (CalendarCreated) Name() string { return CalendarCreatedName }

// ObjetivoCreated fires after an objetivo row is persisted.
type ObjetivoCreated struct {
	UserID     uint
	ObjetivoID uint
}

func (ObjetivoCreated) Name() string { return ObjetivoCreatedName }

// ObjetivoCompleted fires when an objetivo update transitions it to completada.
type ObjetivoCompleted struct {
	UserID     uint
	ObjetivoID uint
}

func (ObjetivoCompleted) Name() string { return ObjetivoCompletedName }

// MetaCompleted fires when a meta update request transitions the meta to
// completada. It carries the update payload and the originating user so the
// deferred worker can be enqueued with full context.
type MetaCompleted struct {
	UserID  uint
	MetaID  uint
	Payload models.MetaUpdate
}

func (MetaCompleted) Name() string { return MetaCompletedName }
