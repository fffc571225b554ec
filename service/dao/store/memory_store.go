package store

import (
	"context"
	"sync"

	"github.com/viant/atomq/service/dao"
)

// MemoryStore implements dao.Service in process memory; List follows first save order
type MemoryStore[K comparable, T any] struct {
	mux         sync.RWMutex
	index       map[K]int
	keys        []K
	values      []*T
	keySelector func(*T) K
	matcher     func(*T, []*dao.Parameter) bool
}

// NewMemoryStore creates a store keyed by keySelector
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, matcher func(*T, []*dao.Parameter) bool) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{index: map[K]int{}, keySelector: keySelector, matcher: matcher}
}

// Save inserts v or replaces it in place
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	var zero K
	key := s.keySelector(v)
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if i, ok := s.index[key]; ok {
		s.values[i] = v
		return nil
	}
	s.index[key] = len(s.values)
	s.keys = append(s.keys, key)
	s.values = append(s.values, v)
	return nil
}

// Load returns the value stored under key
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if i, ok := s.index[key]; ok {
		return s.values[i], nil
	}
	return nil, dao.ErrNotFound
}

// Delete removes key, shifting later entries down
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	i, ok := s.index[key]
	if !ok {
		return dao.ErrNotFound
	}
	delete(s.index, key)
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	s.values = append(s.values[:i], s.values[i+1:]...)
	for j := i; j < len(s.keys); j++ {
		s.index[s.keys[j]] = j
	}
	return nil
}

// List returns values accepted by the matcher
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ret := make([]*T, 0, len(s.values))
	for _, v := range s.values {
		if s.matcher == nil || s.matcher(v, parameters) {
			ret = append(ret, v)
		}
	}
	return ret, nil
}

var _ dao.Service[string, int] = (*MemoryStore[string, int])(nil)
