package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a domain event published by request handlers after a successful
// mutation. Events replace implicit model-lifecycle hooks: every side effect
// is an explicitly registered listener.
type Event interface {
	Name() string
}

// Handler consumes one event. A returned error is logged by the bus and
// never aborts the publishing request or the remaining handlers.
type Handler func(ctx context.Context, e Event) error

// Bus is a small synchronous in-process event dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.SugaredLogger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.SugaredLogger) *Bus {
	return &Bus{handlers: map[string][]Handler{}, logger: logger}
}

// Subscribe registers a handler for an event name. Registration happens at
// boot; Subscribe is still safe to call concurrently with Publish.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

// Publish delivers the event to every subscribed handler in registration
// order, synchronously on the caller's goroutine.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			b.logger.Errorw("event handler failed", "event", e.Name(), "err", err)
		}
	}
}
