// Package statusset keeps the latest snapshot of every bean seen on the status
// topic.  Snapshots are stored through a dao so that the set can live in
// memory or on any afs supported storage.
package statusset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/dao"
	"github.com/viant/atomq/service/dao/criteria"
	"github.com/viant/atomq/service/dao/store"
	"github.com/viant/atomq/service/event"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/processor"

	_ "github.com/mattn/go-sqlite3"
)

// VendorSQLite keeps snapshots in a SQLite database
const VendorSQLite messaging.Vendor = "sqlite"

const sqliteTable = "bean_status"

// ErrNotFound is returned when a bean was never seen
var ErrNotFound = errors.New("statusset: bean not found")

// Service records bean snapshots
type Service struct {
	dao    dao.Service[string, bean.Envelope]
	topic  processor.StatusTopic
	logger *slog.Logger

	mux      sync.Mutex
	listener *event.Listener[bean.Envelope]
	closer   io.Closer
}

// KeyOf returns the store key of an envelope
func KeyOf(envelope *bean.Envelope) string {
	return envelope.ID()
}

// Match filters envelopes by the criteria status parameter
func Match(envelope *bean.Envelope, parameters []*dao.Parameter) bool {
	if envelope == nil || envelope.Bean == nil {
		return false
	}
	return criteria.FilterByStatus(string(envelope.Bean.GetStatus()), parameters)
}

// NewMemory creates an in memory status set
func NewMemory(topic processor.StatusTopic, logger *slog.Logger) *Service {
	return New(store.NewMemoryStore[string, bean.Envelope](KeyOf, Match), topic, logger)
}

// NewFs creates a status set persisted under baseURL
func NewFs(fs afs.Service, baseURL string, topic processor.StatusTopic, logger *slog.Logger) *Service {
	return New(store.NewFsStore[bean.Envelope](fs, baseURL, KeyOf, Match), topic, logger)
}

// NewSQLite creates a status set kept in the SQLite database named by dsn
func NewSQLite(ctx context.Context, dsn string, topic processor.StatusTopic, logger *slog.Logger) (*Service, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open status database: %w", err)
	}
	aStore, err := store.NewSqlStore[bean.Envelope](ctx, db, sqliteTable, KeyOf, Match)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	ret := New(aStore, topic, logger)
	ret.closer = db
	return ret, nil
}

// New creates a status set backed by the supplied store
func New(aDao dao.Service[string, bean.Envelope], topic processor.StatusTopic, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dao: aDao, topic: topic, logger: logger}
}

// Start subscribes to the status topic
func (s *Service) Start() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := s.topic.Subscribe(s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe status set: %w", err)
	}
	s.listener = listener
	return nil
}

// Stop unsubscribes from the status topic
func (s *Service) Stop() {
	s.mux.Lock()
	listener := s.listener
	s.listener = nil
	s.mux.Unlock()
	if listener != nil {
		s.topic.Unsubscribe(listener)
	}
}

// Close stops the set and releases the underlying database, if any
func (s *Service) Close() error {
	s.Stop()
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Service) handle(evt *event.Event[bean.Envelope]) {
	if evt == nil || evt.Data.Bean == nil {
		return
	}
	envelope := evt.Data
	if err := s.dao.Save(context.Background(), &envelope); err != nil {
		s.logger.Warn("failed to record bean", "bean", envelope.ID(), "error", err)
	}
}

// Record stores a snapshot directly
func (s *Service) Record(ctx context.Context, aBean bean.Bean) error {
	if aBean == nil {
		return bean.ErrNilBean
	}
	return s.dao.Save(ctx, bean.Wrap(aBean.Clone()))
}

// Load returns the latest snapshot of a bean
func (s *Service) Load(ctx context.Context, id string) (bean.Bean, error) {
	envelope, err := s.dao.Load(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
		}
		return nil, err
	}
	if envelope == nil || envelope.Bean == nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return envelope.Bean, nil
}

// List returns snapshots, optionally filtered by statuses
func (s *Service) List(ctx context.Context, statuses ...status.Status) ([]bean.Bean, error) {
	var parameters []*dao.Parameter
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, candidate := range statuses {
			values[i] = string(candidate)
		}
		parameters = append(parameters, dao.NewParameter(criteria.StatusParameter, values...))
	}
	envelopes, err := s.dao.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	ret := make([]bean.Bean, 0, len(envelopes))
	for _, envelope := range envelopes {
		if envelope != nil && envelope.Bean != nil {
			ret = append(ret, envelope.Bean)
		}
	}
	return ret, nil
}

// Delete removes a bean from the set
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.dao.Delete(ctx, id)
}
