package event

import (
	"context"

	"github.com/viant/atomq/internal/clock"
	"github.com/viant/atomq/service/messaging"
)

// Publisher publishes events of one payload type onto a queue
type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

// NewPublisher creates a publisher over queue
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps the creation time when missing and enqueues the event
func (p *Publisher[T]) Publish(ctx context.Context, evt *Event[T]) error {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = clock.Now()
	}
	return p.queue.Publish(ctx, evt)
}

// Consume takes the next event, acknowledging it on receipt; it returns nil when none is available
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	message, err := p.queue.Consume(ctx)
	if err != nil || message == nil {
		return nil, err
	}
	if err = message.Ack(); err != nil {
		return nil, err
	}
	return message.T(), nil
}

// Close closes the underlying queue when supported
func (p *Publisher[T]) Close() {
	if closer, ok := p.queue.(interface{ Close() }); ok {
		closer.Close()
	}
}
