package dao

import "errors"

var (
	// ErrNotFound is returned when no snapshot is stored under the key
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID is returned for an empty key
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when saving nil
	ErrNilEntity = errors.New("dao: nil entity")
)
