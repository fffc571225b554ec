// Package dao defines keyed snapshot storage used by the status set.
package dao

import (
	"context"
)

// Service stores entities of type T keyed by K
type Service[K comparable, T any] interface {
	// Save inserts or replaces the entity under its key
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	// List returns entities matching every parameter
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
