// Package queue provides AtomQueue, the ordered and duplicate free container
// holding the child atoms of a composite bean. Insertion order is execution
// order. An AtomQueue is owned by exactly one bean and is not safe for
// concurrent use on its own; the owning bean guards it.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNilQueue is returned when mutating a nil queue
	ErrNilQueue = errors.New("queue: nil queue")

	// ErrNilAtom is returned when a nil atom is added
	ErrNilAtom = errors.New("queue: nil atom")

	// ErrDuplicateID is returned when an atom with the same ID is already queued
	ErrDuplicateID = errors.New("queue: duplicate id")

	// ErrNotFound is returned when no atom matches the supplied ID
	ErrNotFound = errors.New("queue: not found")

	// ErrEmpty is returned by head/tail access on an empty queue
	ErrEmpty = errors.New("queue: empty")

	// ErrIndexOutOfRange is returned for positional access outside the queue
	ErrIndexOutOfRange = errors.New("queue: index out of range")

	// ErrIllegalState is returned by iterator mutations without a preceding move
	ErrIllegalState = errors.New("queue: illegal iterator state")
)

// Atom is the minimal contract of a queued item
type Atom interface {
	GetID() string
	GetRunTime() int64
}

// AtomQueue is an ordered sequence of atoms keyed by atom ID
type AtomQueue[T Atom] struct {
	items   []T
	runTime int64
}

// New creates a queue holding the supplied atoms in order
func New[T Atom](atoms ...T) (*AtomQueue[T], error) {
	ret := &AtomQueue[T]{}
	if err := ret.AddAll(atoms...); err != nil {
		return nil, err
	}
	return ret, nil
}

// Len returns number of queued atoms
func (q *AtomQueue[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// IsEmpty returns true when no atom is queued
func (q *AtomQueue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// RunTime returns the sum of queued atoms run time
func (q *AtomQueue[T]) RunTime() int64 {
	if q == nil {
		return 0
	}
	return q.runTime
}

// Items returns a copy of the queued atoms in order
func (q *AtomQueue[T]) Items() []T {
	if q == nil {
		return nil
	}
	return append([]T(nil), q.items...)
}

// Contains returns true if an atom with the ID is queued
func (q *AtomQueue[T]) Contains(id string) bool {
	return q.Index(id) != -1
}

// Index returns the position of the atom with the ID or -1
func (q *AtomQueue[T]) Index(id string) int {
	if q == nil {
		return -1
	}
	for i, item := range q.items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

// Add appends an atom at the tail
func (q *AtomQueue[T]) Add(atom T) error {
	return q.Insert(q.Len(), atom)
}

// Insert places an atom at the given position shifting the rest towards the tail
func (q *AtomQueue[T]) Insert(index int, atom T) error {
	return q.InsertAll(index, atom)
}

// AddAll appends atoms at the tail; the batch is rejected as a whole on any error
func (q *AtomQueue[T]) AddAll(atoms ...T) error {
	return q.InsertAll(q.Len(), atoms...)
}

// InsertAll places atoms at the given position; the batch is rejected as a whole on any error
func (q *AtomQueue[T]) InsertAll(index int, atoms ...T) error {
	if q == nil {
		return ErrNilQueue
	}
	if index < 0 || index > len(q.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	seen := make(map[string]bool, len(atoms))
	for _, atom := range atoms {
		if isNil(atom) {
			return ErrNilAtom
		}
		id := atom.GetID()
		if seen[id] || q.Contains(id) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	if len(atoms) == 0 {
		return nil
	}
	items := make([]T, 0, len(q.items)+len(atoms))
	items = append(items, q.items[:index]...)
	items = append(items, atoms...)
	items = append(items, q.items[index:]...)
	q.items = items
	q.recalculate()
	return nil
}

// View returns the atom at the position
func (q *AtomQueue[T]) View(index int) (T, error) {
	var zero T
	if index < 0 || index >= q.Len() {
		return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return q.items[index], nil
}

// ViewID returns the atom with the ID
func (q *AtomQueue[T]) ViewID(id string) (T, error) {
	var zero T
	index := q.Index(id)
	if index == -1 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return q.items[index], nil
}

// RemoveAt removes and returns the atom at the position
func (q *AtomQueue[T]) RemoveAt(index int) (T, error) {
	var zero T
	if index < 0 || index >= q.Len() {
		return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	ret := q.items[index]
	q.items = append(q.items[:index:index], q.items[index+1:]...)
	q.recalculate()
	return ret, nil
}

// RemoveID removes and returns the atom with the ID
func (q *AtomQueue[T]) RemoveID(id string) (T, error) {
	var zero T
	index := q.Index(id)
	if index == -1 {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return q.RemoveAt(index)
}

// Next removes and returns the head atom
func (q *AtomQueue[T]) Next() (T, error) {
	var zero T
	if q.IsEmpty() {
		return zero, ErrEmpty
	}
	return q.RemoveAt(0)
}

// ViewNext returns the head atom without removing it
func (q *AtomQueue[T]) ViewNext() (T, error) {
	var zero T
	if q.IsEmpty() {
		return zero, ErrEmpty
	}
	return q.items[0], nil
}

// Last removes and returns the tail atom
func (q *AtomQueue[T]) Last() (T, error) {
	var zero T
	if q.IsEmpty() {
		return zero, ErrEmpty
	}
	return q.RemoveAt(len(q.items) - 1)
}

// ViewLast returns the tail atom without removing it
func (q *AtomQueue[T]) ViewLast() (T, error) {
	var zero T
	if q.IsEmpty() {
		return zero, ErrEmpty
	}
	return q.items[len(q.items)-1], nil
}

// Recalculate refreshes the derived run time, call it after mutating a queued atom run time
func (q *AtomQueue[T]) Recalculate() {
	q.recalculate()
}

func (q *AtomQueue[T]) recalculate() {
	var total int64
	for _, item := range q.items {
		total += item.GetRunTime()
	}
	q.runTime = total
}

// Iterator returns a bidirectional iterator positioned before the head
func (q *AtomQueue[T]) Iterator() *Iterator[T] {
	return &Iterator[T]{queue: q, last: -1}
}

// MarshalJSON encodes the queue as {"atoms":[...],"runTime":N}
func (q *AtomQueue[T]) MarshalJSON() ([]byte, error) {
	atoms := q.Items()
	if atoms == nil {
		atoms = []T{}
	}
	return json.Marshal(struct {
		Atoms   []T   `json:"atoms"`
		RunTime int64 `json:"runTime"`
	}{Atoms: atoms, RunTime: q.RunTime()})
}

func isNil(atom Atom) bool {
	if atom == nil {
		return true
	}
	v := reflect.ValueOf(atom)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
