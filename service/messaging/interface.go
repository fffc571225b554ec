package messaging

import (
	"context"
	"errors"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory keeps messages in process memory
	VendorMemory Vendor = "memory"
	// VendorFS keeps messages as JSON files on any afs supported storage
	VendorFS Vendor = "fs"
)

var (
	// ErrClosed is returned when publishing to or consuming from a closed queue
	ErrClosed = errors.New("messaging: queue closed")

	// ErrQueueFull is returned when a bounded queue has no room left
	ErrQueueFull = errors.New("messaging: queue full")

	// ErrSettled is returned when acking or nacking a message twice
	ErrSettled = errors.New("messaging: message already settled")
)

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Drainer is implemented by queues that can hand back every pending payload at once
type Drainer[T any] interface {
	// Drain removes and returns all pending payloads in queue order
	Drain(ctx context.Context) ([]*T, error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
