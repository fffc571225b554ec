package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/atomq/service/messaging"
)

// Listener consumes events from its publisher queue on a dedicated goroutine
type Listener[T any] struct {
	ID        string
	publisher *Publisher[T]
	handler   func(*Event[T])
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

const consumeBackoff = 10 * time.Millisecond

// NewListener creates a stopped listener, call Start to begin delivery
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Stop cancels consumption and waits for the listener goroutine; it must not be called from the handler
func (l *Listener[T]) Stop() {
	l.once.Do(func() {
		l.cancel()
		l.publisher.Close()
	})
	<-l.done
}

// Start delivers events to the handler in publish order until Stop
func (l *Listener[T]) Start() {
	go l.run()
}

func (l *Listener[T]) run() {
	defer close(l.done)
	for l.ctx.Err() == nil {
		evt, err := l.publisher.Consume(l.ctx)
		switch {
		case err == nil:
			if evt != nil && l.ctx.Err() == nil {
				l.handler(evt)
			}
		case l.ctx.Err() != nil, errors.Is(err, messaging.ErrClosed):
			return
		default:
			l.logger.Warn("event consume failed", "listener", l.ID, "error", err)
			time.Sleep(consumeBackoff)
		}
	}
}
