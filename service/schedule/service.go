// Package schedule submits plans on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/viant/atomq/internal/clock"
)

// DefaultCheckInterval is how often due entries are looked up
const DefaultCheckInterval = time.Second

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Submitter submits the plan stored at location and returns the job ID
type Submitter interface {
	SubmitPlan(ctx context.Context, location string) (string, error)
}

// Entry submits Plan whenever Spec fires; Spec is a five field cron expression or a descriptor such as @hourly
type Entry struct {
	Spec string `json:"spec" yaml:"spec"`
	Plan string `json:"plan" yaml:"plan"`
}

// Validate checks the entry
func (e *Entry) Validate() error {
	if e.Plan == "" {
		return fmt.Errorf("schedule %q: plan was empty", e.Spec)
	}
	if _, err := parser.Parse(e.Spec); err != nil {
		return fmt.Errorf("schedule %q: %w", e.Spec, err)
	}
	return nil
}

type entry struct {
	Entry
	schedule cron.Schedule
	next     time.Time
}

// Service runs scheduled plan submissions
type Service struct {
	submitter Submitter
	entries   []*entry
	interval  time.Duration
	logger    *slog.Logger

	mux    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises the scheduler
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCheckInterval sets how often due entries are looked up
func WithCheckInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// New creates a scheduler; every entry must parse
func New(submitter Submitter, entries []Entry, options ...Option) (*Service, error) {
	ret := &Service{submitter: submitter, interval: DefaultCheckInterval, logger: slog.Default()}
	for _, option := range options {
		option(ret)
	}
	var errs []error
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		schedule, _ := parser.Parse(entries[i].Spec)
		ret.entries = append(ret.entries, &entry{Entry: entries[i], schedule: schedule})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ret, nil
}

// Start computes the first run of every entry and starts the check loop
func (s *Service) Start(ctx context.Context) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.cancel != nil || len(s.entries) == 0 {
		return
	}
	now := clock.Now()
	for _, e := range s.entries {
		e.next = e.schedule.Next(now)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop stops the check loop and waits for it to exit
func (s *Service) Stop() {
	s.mux.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mux.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, clock.Now())
		}
	}
}

// fire submits every entry due at now; a missed window runs once
func (s *Service) fire(ctx context.Context, now time.Time) {
	for _, e := range s.entries {
		if now.Before(e.next) {
			continue
		}
		e.next = e.schedule.Next(now)
		jobID, err := s.submitter.SubmitPlan(ctx, e.Plan)
		if err != nil {
			s.logger.Warn("scheduled plan failed", "plan", e.Plan, "spec", e.Spec, "error", err)
			continue
		}
		s.logger.Info("scheduled plan submitted", "plan", e.Plan, "spec", e.Spec, "bean_id", jobID, "next", e.next)
	}
}
