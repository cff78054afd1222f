package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/queue"
)

// Dispatcher enqueues deferred jobs. Satisfied by *queue.Queue; tests
// substitute a recording fake.
type Dispatcher interface {
	Enqueue(job queue.Job, delay time.Duration)
}

// Listeners wires gamification side effects to domain events.
type Listeners struct {
	db      *gorm.DB
	awarder *gamification.Awarder
	queue   Dispatcher
	rdb     *redis.Client
	logger  *zap.SugaredLogger
}

// NewListeners builds the listener set. rdb may be nil; enqueue dedup is
// then skipped.
func NewListeners(db *gorm.DB, awarder *gamification.Awarder, q Dispatcher, rdb *redis.Client, logger *zap.SugaredLogger) *Listeners {
	return &Listeners{db: db, awarder: awarder, queue: q, rdb: rdb, logger: logger}
}

// Register subscribes every gamification listener on the bus.
func (l *Listeners) Register(bus *events.Bus) {
	bus.Subscribe(events.NoteCreatedName, l.onNoteCreated)
	bus.Subscribe(events.AlarmCreatedName, l.onAlarmCreated)
	bus.Subscribe(events.CalendarCreatedName, l.onCalendarCreated)
	bus.Subscribe(events.ObjetivoCreatedName, l.onObjetivoCreated)
	bus.Subscribe(events.ObjetivoCompletedName, l.onObjetivoCompleted)
	bus.Subscribe(events.MetaCompletedName, l.onMetaCompleted)
}

// onMetaCompleted schedules the deferred worker. An in-flight SETNX key per
// meta keeps rapid double-saves from enqueueing duplicate jobs; the worker
// clears it when it finishes.
func (l *Listeners) onMetaCompleted(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.MetaCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	if !l.acquireInFlight(ctx, evt.MetaID) {
		l.logger.Debugw("meta update already queued, skipping", "meta", evt.MetaID)
		return nil
	}
	l.queue.Enqueue(&ProcessMetaUpdate{
		MetaID:  evt.MetaID,
		Payload: evt.Payload,
		UserID:  evt.UserID,
		db:      l.db,
		awarder: l.awarder,
		rdb:     l.rdb,
		logger:  l.logger,
	}, metaUpdateDelay)
	return nil
}

// acquireInFlight reserves the per-meta slot. Fails open when Redis is
// unavailable: a duplicate job is harmless because the award claim in the
// worker is idempotent.
func (l *Listeners) acquireInFlight(ctx context.Context, metaID uint) bool {
	if l.rdb == nil {
		return true
	}
	// TTL covers the enqueue delay plus the whole retry schedule
	ok, err := l.rdb.SetNX(ctx, inFlightKey(metaID), "1", time.Minute).Result()
	if err != nil {
		return true
	}
	return ok
}

func (l *Listeners) onObjetivoCompleted(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.ObjetivoCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	// same at-most-once claim as metas, awarded synchronously
	claim := l.db.WithContext(ctx).Model(&models.Objetivo{}).
		Where("id = ? AND xp_awarded = ?", evt.ObjetivoID, false).
		Update("xp_awarded", true)
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil
	}
	_, err := l.awarder.AwardToUser(ctx, evt.UserID, "complete_objetivo", fmt.Sprintf("objetivo:%d", evt.ObjetivoID))
	return err
}

func (l *Listeners) onNoteCreated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.NoteCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	_, err := l.awarder.AwardToUser(ctx, evt.UserID, "create_note", fmt.Sprintf("note:%d", evt.NoteID))
	return err
}

func (l *Listeners) onAlarmCreated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.AlarmCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	_, err := l.awarder.AwardToUser(ctx, evt.UserID, "create_alarm", fmt.Sprintf("alarm:%d", evt.AlarmID))
	return err
}

func (l *Listeners) onCalendarCreated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.CalendarCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	_, err := l.awarder.AwardToUser(ctx, evt.UserID, "create_event", fmt.Sprintf("event:%d", evt.EventID))
	return err
}

func (l *Listeners) onObjetivoCreated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.ObjetivoCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	_, err := l.awarder.AwardToUser(ctx, evt.UserID, "create_objetivo", fmt.Sprintf("objetivo:%d", evt.ObjetivoID))
	return err
}
