// Package watch submits YAML plans dropped into a local directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Submitter submits the plan stored at location and returns the job ID
type Submitter interface {
	SubmitPlan(ctx context.Context, location string) (string, error)
}

// Service watches a directory and submits every new or rewritten plan once
type Service struct {
	dir       string
	submitter Submitter
	logger    *slog.Logger
	onSubmit  func(location, jobID string)

	mux  sync.Mutex
	seen map[string]version
}

type version struct {
	size    int64
	modTime time.Time
}

// Option customises the watcher
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnSubmit registers a callback invoked after each successful submission
func WithOnSubmit(fn func(location, jobID string)) Option {
	return func(s *Service) {
		s.onSubmit = fn
	}
}

// New creates a watcher for dir
func New(dir string, submitter Submitter, options ...Option) *Service {
	ret := &Service{dir: dir, submitter: submitter, logger: slog.Default(), seen: map[string]version{}}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Run submits plans already present in the directory, then every plan created or
// written until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create plan directory %v: %w", s.dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err = watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %v: %w", s.dir, err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list %v: %w", s.dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			s.handle(ctx, filepath.Join(s.dir, entry.Name()))
		}
	}
	s.logger.Info("watching plans", "dir", s.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Has(fsnotify.Create) || evt.Has(fsnotify.Write) {
				s.handle(ctx, evt.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "dir", s.dir, "error", err)
		}
	}
}

func (s *Service) handle(ctx context.Context, name string) {
	if !isPlan(name) {
		return
	}
	info, err := os.Stat(name)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}
	current := version{size: info.Size(), modTime: info.ModTime()}
	s.mux.Lock()
	if s.seen[name] == current {
		s.mux.Unlock()
		return
	}
	s.mux.Unlock()

	location := "file://" + filepath.ToSlash(name)
	jobID, err := s.submitter.SubmitPlan(ctx, location)
	if err != nil {
		// a partially written plan is retried on its next write event
		s.logger.Warn("failed to submit plan", "plan", name, "error", err)
		return
	}
	s.mux.Lock()
	s.seen[name] = current
	s.mux.Unlock()
	s.logger.Info("submitted plan", "plan", name, "bean_id", jobID)
	if s.onSubmit != nil {
		s.onSubmit(location, jobID)
	}
}

func isPlan(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}
