// Package event provides typed events, the vendor specific queue factory and
// fan-out topics used to broadcast bean state.
package event

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/messaging/fs"
	"github.com/viant/atomq/service/messaging/memory"
)

type Service struct {
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
	fs                afs.Service
	logger            *slog.Logger
	topics            map[string]any
	mux               sync.RWMutex
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor: queueVendor,
		fs:          afs.New(),
		logger:      slog.Default(),
		topics:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(ret)
	}

	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires fsNewQueueConfig")
		}
	case messaging.VendorMemory:
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}
	return ret, nil
}

// Vendor returns queue vendor
func (s *Service) Vendor() messaging.Vendor {
	return s.queueVendor
}

// QueueOf creates a named queue with the configured vendor
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](s.fs, s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

// TopicOf returns the named topic, creating it on first use
func TopicOf[T any](s *Service, name string) (*Topic[T], error) {
	s.mux.RLock()
	ret, ok := s.topics[name]
	s.mux.RUnlock()
	if ok {
		topic, ok := ret.(*Topic[T])
		if !ok {
			return nil, fmt.Errorf("topic %v already registered with a different type", name)
		}
		return topic, nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.topics[name]; ok {
		if topic, ok := ret.(*Topic[T]); ok {
			return topic, nil
		}
		return nil, fmt.Errorf("topic %v already registered with a different type", name)
	}
	topic := NewTopic[T](name, s.logger)
	s.topics[name] = topic
	return topic, nil
}

// Close closes every topic
func (s *Service) Close() {
	s.mux.Lock()
	topics := s.topics
	s.topics = make(map[string]any)
	s.mux.Unlock()
	for _, topic := range topics {
		if closer, ok := topic.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
