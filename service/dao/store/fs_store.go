package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/atomq/service/dao"
)

const ext = ".json"

// FsStore implements dao.Service keeping one JSON document per entity on any afs storage
type FsStore[T any] struct {
	baseURL     string
	fs          afs.Service
	keySelector func(*T) string
	matcher     func(*T, []*dao.Parameter) bool
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewFsStore creates a store rooted at baseURL
func NewFsStore[T any](fs afs.Service, baseURL string, keySelector func(*T) string, matcher func(*T, []*dao.Parameter) bool) *FsStore[T] {
	return &FsStore[T]{baseURL: baseURL, fs: fs, keySelector: keySelector, matcher: matcher, logger: slog.Default()}
}

// Save writes the entity document, replacing any previous version
func (s *FsStore[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	id := s.keySelector(v)
	if id == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fs store: encode %v: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.entityPath(id)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("fs store: write %v: %w", location, err)
	}
	return nil
}

// Load reads the entity document
func (s *FsStore[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	location, err := s.existing(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fs store: read %v: %w", location, err)
	}
	return s.decode(location, data)
}

// Delete removes the entity document
func (s *FsStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location, err := s.existing(ctx, id)
	if err != nil {
		return err
	}
	return s.fs.Delete(ctx, location)
}

// List returns matching entities ordered by file name; unreadable documents are skipped
func (s *FsStore[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ok, _ := s.fs.Exists(ctx, s.baseURL); !ok {
		return nil, nil
	}
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("fs store: list %s: %w", s.baseURL, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name() < objects[j].Name() })
	var ret []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ext) {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err == nil {
			var v *T
			if v, err = s.decode(object.URL(), data); err == nil {
				if s.matcher == nil || s.matcher(v, parameters) {
					ret = append(ret, v)
				}
				continue
			}
		}
		s.logger.Warn("skipping entity", "url", object.URL(), "error", err)
	}
	return ret, nil
}

func (s *FsStore[T]) existing(ctx context.Context, id string) (string, error) {
	location := s.entityPath(id)
	ok, err := s.fs.Exists(ctx, location)
	if err != nil {
		return "", fmt.Errorf("fs store: stat %v: %w", location, err)
	}
	if !ok {
		return "", dao.ErrNotFound
	}
	return location, nil
}

func (s *FsStore[T]) decode(location string, data []byte) (*T, error) {
	ret := new(T)
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("fs store: decode %v: %w", location, err)
	}
	return ret, nil
}

func (s *FsStore[T]) entityPath(id string) string {
	return url.Join(s.baseURL, id+ext)
}

var _ dao.Service[string, int] = (*FsStore[int])(nil)
