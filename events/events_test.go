package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testBus() *Bus {
	l, _ := zap.NewDevelopment()
	return NewBus(l.Sugar())
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := testBus()
	var order []int
	bus.Subscribe(NoteCreatedName, func(ctx context.Context, e Event) error {
		order = append(order, 1)
		return nil
	})
	bus.Subscribe(NoteCreatedName, func(ctx context.Context, e Event) error {
		order = append(order, 2)
		return nil
	})

	bus.Publish(context.Background(), NoteCreated{UserID: 1, NoteID: 2})
	assert.Equal(t, []int{1, 2}, order)
}

func TestPublishOnlyMatchingName(t *testing.T) {
	bus := testBus()
	var noteCalls, alarmCalls int
	bus.Subscribe(NoteCreatedName, func(ctx context.Context, e Event) error {
		noteCalls++
		return nil
	})
	bus.Subscribe(AlarmCreatedName, func(ctx context.Context, e Event) error {
		alarmCalls++
		return nil
	})

	bus.Publish(context.Background(), AlarmCreated{UserID: 1, AlarmID: 3})
	assert.Equal(t, 0, noteCalls)
	assert.Equal(t, 1, alarmCalls)
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := testBus()
	var secondRan bool
	bus.Subscribe(MetaCompletedName, func(ctx context.Context, e Event) error {
		return errors.New("handler exploded")
	})
	bus.Subscribe(MetaCompletedName, func(ctx context.Context, e Event) error {
		secondRan = true
		return nil
	})

	bus.Publish(context.Background(), MetaCompleted{UserID: 1, MetaID: 9})
	assert.True(t, secondRan)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := testBus()
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), ObjetivoCreated{UserID: 1, ObjetivoID: 1})
	})
}
