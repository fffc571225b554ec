package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/atomq/internal/clock"
	"github.com/viant/atomq/internal/idgen"
	"github.com/viant/atomq/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	DeadLetter bool
	// QueueBuffer limits pending messages, zero means unbounded
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		DeadLetter: true,
	}
}

// Message is a queued payload; a nacked message is redelivered after RetryDelay
// until MaxRetries, then parked in the dead letter list
type Message[T any] struct {
	id        string
	payload   T
	queue     *Queue[T]
	attempts  int
	createdAt time.Time

	mux     sync.Mutex
	settled bool
}

// ID returns the message ID
func (m *Message[T]) ID() string {
	return m.id
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack settles the message
func (m *Message[T]) Ack() error {
	return m.settle()
}

// Nack settles the message and schedules its redelivery
func (m *Message[T]) Nack(error) error {
	if err := m.settle(); err != nil {
		return err
	}
	q := m.queue
	if m.attempts+1 > q.config.MaxRetries {
		if q.config.DeadLetter {
			q.mux.Lock()
			q.dlq = append(q.dlq, m)
			q.mux.Unlock()
		}
		return nil
	}
	retry := &Message[T]{id: m.id, payload: m.payload, queue: q, attempts: m.attempts + 1, createdAt: clock.Now()}
	time.AfterFunc(q.config.RetryDelay, func() { _ = q.push(retry) })
	return nil
}

func (m *Message[T]) settle() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.settled {
		return messaging.ErrSettled
	}
	m.settled = true
	return nil
}

// Queue implements an in-memory messaging.Queue; messages are consumed in publish order
type Queue[T any] struct {
	config   Config
	mux      sync.Mutex
	messages []*Message[T]
	dlq      []*Message[T]
	notify   chan struct{}
	closed   chan struct{}
	once     sync.Once
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	return &Queue[T]{
		config: config,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Publish adds a new item to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("memory queue: payload was nil")
	}
	return q.push(&Message[T]{
		id:        idgen.New(),
		payload:   *t,
		queue:     q,
		createdAt: clock.Now(),
	})
}

func (q *Queue[T]) push(msg *Message[T]) error {
	q.mux.Lock()
	select {
	case <-q.closed:
		q.mux.Unlock()
		return messaging.ErrClosed
	default:
	}
	if q.config.QueueBuffer > 0 && len(q.messages) >= q.config.QueueBuffer {
		q.mux.Unlock()
		return messaging.ErrQueueFull
	}
	q.messages = append(q.messages, msg)
	q.mux.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue[T]) pop() *Message[T] {
	q.mux.Lock()
	defer q.mux.Unlock()
	if len(q.messages) == 0 {
		return nil
	}
	ret := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]
	if len(q.messages) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return ret
}

// Consume retrieves a single item from the queue, blocking until one is available
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		if msg := q.pop(); msg != nil {
			return msg, nil
		}
		select {
		case <-q.notify:
		case <-q.closed:
			if msg := q.pop(); msg != nil {
				return msg, nil
			}
			return nil, messaging.ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Drain removes and returns all pending payloads
func (q *Queue[T]) Drain(_ context.Context) ([]*T, error) {
	q.mux.Lock()
	defer q.mux.Unlock()
	ret := make([]*T, 0, len(q.messages))
	for _, msg := range q.messages {
		ret = append(ret, &msg.payload)
	}
	q.messages = nil
	return ret, nil
}

// Close stops accepting messages; pending messages can still be consumed or drained
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		q.mux.Lock()
		close(q.closed)
		q.mux.Unlock()
	})
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.messages)
}

// DLQSize returns the number of messages in the dead letter queue
func (q *Queue[T]) DLQSize() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.dlq)
}

var (
	_ messaging.Queue[any]   = (*Queue[any])(nil)
	_ messaging.Drainer[any] = (*Queue[any])(nil)
)
