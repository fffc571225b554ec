package consumer

import (
	"log/slog"
	"time"
)

// Option configures a Service
type Option func(*Service)

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithPauseOnFailure holds consumption after a bean fails
func WithPauseOnFailure(pause bool) Option {
	return func(s *Service) {
		s.config.PauseOnFailure = pause
	}
}

// WithPollInterval sets the back-off used when the queue returns nothing
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.config.PollInterval = interval
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
