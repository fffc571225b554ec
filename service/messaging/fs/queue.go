// Package fs implements a durable messaging.Queue keeping one JSON file per message.
//
// Messages move between state folders under Config.BasePath:
// pending -> processing -> completed, or processing -> failed -> (retry) processing,
// and finally dlq once Config.MaxRetries is exceeded.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/atomq/internal/clock"
	"github.com/viant/atomq/internal/idgen"
	"github.com/viant/atomq/service/messaging"
)

// State is a message state, it doubles as the folder name holding the message
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dlq"
)

var states = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}

// Config holds fs queue settings
type Config struct {
	BasePath   string
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the default fs queue settings
func DefaultConfig() Config {
	return Config{
		BasePath:   "/tmp/atomq/queue",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Message is a queued payload with its delivery bookkeeping
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Retries   int       `json:"retries"`

	queue   *Queue[T]
	settled bool
	mux     sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to the completed folder
func (m *Message[T]) Ack() error {
	return m.settle(nil, StateCompleted)
}

// Nack moves the message to the failed folder, or to the dlq once retries are exhausted
func (m *Message[T]) Nack(err error) error {
	return m.settle(err, StateFailed)
}

func (m *Message[T]) settle(cause error, to State) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.settled {
		return messaging.ErrSettled
	}
	m.settled = true
	if to == StateFailed {
		m.Retries++
		if cause != nil {
			m.Error = cause.Error()
		}
		if m.Retries > m.queue.config.MaxRetries {
			to = StateDead
		}
	}
	return m.queue.transfer(context.Background(), m, StateProcessing, to)
}

// Queue is a filesystem backed messaging.Queue; listing order is publish order
type Queue[T any] struct {
	fs     afs.Service
	config Config
	mux    sync.Mutex
}

// NewQueue creates the state folders under config.BasePath
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("fs queue: base path was empty")
	}
	ret := &Queue[T]{fs: fs, config: config}
	ctx := context.Background()
	for _, state := range states {
		dir := ret.dir(state)
		if ok, _ := fs.Exists(ctx, dir); ok {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("fs queue: failed to create %v: %w", dir, err)
		}
	}
	return ret, nil
}

func (q *Queue[T]) dir(state State) string {
	return path.Join(q.config.BasePath, string(state))
}

func (q *Queue[T]) location(state State, id string) string {
	return path.Join(q.dir(state), id+".json")
}

// Publish writes t to the pending folder
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if t == nil {
		return fmt.Errorf("fs queue: payload was nil")
	}
	now := clock.Now()
	message := &Message[T]{ID: idgen.Sortable(now), Data: *t, State: StatePending, CreatedAt: now, UpdatedAt: now}
	return q.write(ctx, message, StatePending)
}

// Consume claims a failed message eligible for retry, or else the oldest pending one.
// It returns nil when nothing is available.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mux.Lock()
	defer q.mux.Unlock()
	message, err := q.claim(ctx, StateFailed, StateDead)
	if message != nil || err != nil {
		return message, err
	}
	if message, err = q.claim(ctx, StatePending, StateFailed); message == nil {
		return nil, err
	}
	return message, err
}

// claim moves the oldest message in from to processing; an unreadable file is moved to quarantine
func (q *Queue[T]) claim(ctx context.Context, from, quarantine State) (*Message[T], error) {
	objects, err := q.fs.List(ctx, q.dir(from), option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("fs queue: failed to list %v: %w", from, err)
	}
	candidates := messageFiles(objects)
	if len(candidates) == 0 {
		return nil, nil
	}
	object := candidates[0]
	message, err := q.read(ctx, object.URL())
	if err != nil {
		_ = q.fs.Move(ctx, object.URL(), path.Join(q.dir(quarantine), "invalid-"+object.Name()))
		return nil, err
	}
	message.queue = q
	if from == StateFailed && message.Retries > q.config.MaxRetries {
		if err = q.fs.Move(ctx, object.URL(), q.location(StateDead, message.ID)); err != nil {
			return nil, fmt.Errorf("fs queue: failed to move %v to dlq: %w", message.ID, err)
		}
		return nil, nil
	}
	if err = q.transfer(ctx, message, from, StateProcessing); err != nil {
		return nil, err
	}
	return message, nil
}

// transfer writes message into the to folder, then removes it from the from folder
func (q *Queue[T]) transfer(ctx context.Context, message *Message[T], from, to State) error {
	message.State = to
	message.UpdatedAt = clock.Now()
	if err := q.write(ctx, message, to); err != nil {
		return err
	}
	source := q.location(from, message.ID)
	if ok, _ := q.fs.Exists(ctx, source); !ok {
		return nil
	}
	if err := q.fs.Delete(ctx, source); err != nil {
		return fmt.Errorf("fs queue: failed to remove %v from %v: %w", message.ID, from, err)
	}
	return nil
}

func (q *Queue[T]) write(ctx context.Context, message *Message[T], state State) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("fs queue: failed to encode %v: %w", message.ID, err)
	}
	if err = q.fs.Upload(ctx, q.location(state, message.ID), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("fs queue: failed to write %v to %v: %w", message.ID, state, err)
	}
	return nil
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("fs queue: failed to read %v: %w", URL, err)
	}
	message := &Message[T]{}
	if err = json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("fs queue: failed to decode %v: %w", URL, err)
	}
	return message, nil
}

// Drain removes and returns all pending payloads in publish order
func (q *Queue[T]) Drain(ctx context.Context) ([]*T, error) {
	q.mux.Lock()
	defer q.mux.Unlock()
	objects, err := q.fs.List(ctx, q.dir(StatePending))
	if err != nil {
		return nil, fmt.Errorf("fs queue: failed to list pending: %w", err)
	}
	var ret []*T
	for _, object := range messageFiles(objects) {
		message, err := q.read(ctx, object.URL())
		if err != nil {
			return ret, err
		}
		if err = q.fs.Delete(ctx, object.URL()); err != nil {
			return ret, fmt.Errorf("fs queue: failed to remove drained %v: %w", message.ID, err)
		}
		ret = append(ret, &message.Data)
	}
	return ret, nil
}

// Size returns the number of pending messages
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	objects, err := q.fs.List(ctx, q.dir(StatePending))
	if err != nil {
		return 0, err
	}
	return len(messageFiles(objects)), nil
}

// messageFiles returns json files sorted by name
func messageFiles(objects []storage.Object) []storage.Object {
	var ret []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			ret = append(ret, object)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret
}

var (
	_ messaging.Queue[any]   = (*Queue[any])(nil)
	_ messaging.Drainer[any] = (*Queue[any])(nil)
)
