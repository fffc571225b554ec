package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/atomq/internal/idgen"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/messaging/memory"
)

// Topic fans every published event out to all subscribers.  Each subscriber
// owns an unbounded queue consumed by its own listener goroutine, so a slow
// subscriber never blocks publishers and per publisher ordering is kept.
type Topic[T any] struct {
	name      string
	logger    *slog.Logger
	mux       sync.RWMutex
	listeners map[string]*Listener[T]
	closed    bool
}

// NewTopic creates a topic
func NewTopic[T any](name string, logger *slog.Logger) *Topic[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Topic[T]{name: name, logger: logger, listeners: make(map[string]*Listener[T])}
}

// Name returns topic name
func (t *Topic[T]) Name() string {
	return t.name
}

// Publish delivers the event to every subscriber
func (t *Topic[T]) Publish(ctx context.Context, event *Event[T]) error {
	t.mux.RLock()
	defer t.mux.RUnlock()
	if t.closed {
		return messaging.ErrClosed
	}
	for id, listener := range t.listeners {
		if err := listener.publisher.Publish(ctx, event); err != nil {
			t.logger.Warn("failed to deliver event", "topic", t.name, "subscriber", id, "error", err)
		}
	}
	return nil
}

// Subscribe registers handler; events published after the call are delivered in order
func (t *Topic[T]) Subscribe(handler func(*Event[T])) (*Listener[T], error) {
	queue := memory.NewQueue[Event[T]](memory.Config{})
	listener := NewListener[T](NewPublisher[T](queue), handler)
	listener.ID = idgen.New()
	listener.logger = t.logger
	t.mux.Lock()
	if t.closed {
		t.mux.Unlock()
		return nil, fmt.Errorf("topic %v: %w", t.name, messaging.ErrClosed)
	}
	t.listeners[listener.ID] = listener
	t.mux.Unlock()
	listener.Start()
	return listener, nil
}

// Unsubscribe removes and stops the listener
func (t *Topic[T]) Unsubscribe(listener *Listener[T]) {
	if listener == nil {
		return
	}
	t.mux.Lock()
	delete(t.listeners, listener.ID)
	t.mux.Unlock()
	listener.Stop()
}

// Subscribers returns number of active subscribers
func (t *Topic[T]) Subscribers() int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return len(t.listeners)
}

// Close stops every subscriber
func (t *Topic[T]) Close() {
	t.mux.Lock()
	t.closed = true
	listeners := t.listeners
	t.listeners = map[string]*Listener[T]{}
	t.mux.Unlock()
	for _, listener := range listeners {
		listener.Stop()
	}
}
