package event

import (
	"log/slog"

	"github.com/viant/atomq/service/messaging/fs"
	"github.com/viant/atomq/service/messaging/memory"
)

// Option customises the event service
type Option func(s *Service)

// WithNewFsQueueConfig sets the per topic fs queue settings
func WithNewFsQueueConfig(configFor func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = configFor
	}
}

// WithNewMemoryQueueConfig sets the per topic memory queue settings
func WithNewMemoryQueueConfig(configFor func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = configFor
	}
}

// WithLogger sets the logger used by topics and listeners
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
