package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/viant/atomq/internal/clock"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/processor"
	"github.com/viant/atomq/tracing"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotRunning is returned when commanding a bean that is not being processed
	ErrNotRunning = errors.New("consumer: bean is not running")

	// ErrStopped is returned when starting a stopped consumer
	ErrStopped = errors.New("consumer: stopped")
)

const removedMessage = "Removed from queue before start (queue stopped)."

// Config represents consumer configuration
type Config struct {
	// WorkerCount is the number of beans processed concurrently
	WorkerCount int `json:"workerCount,omitempty" yaml:"workerCount,omitempty"`
	// PauseOnFailure holds consumption once a bean fails
	PauseOnFailure bool `json:"pauseOnFailure,omitempty" yaml:"pauseOnFailure,omitempty"`
	// PollInterval is the back-off used when the queue returns nothing
	PollInterval time.Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
}

// DefaultConfig returns the default consumer configuration
func DefaultConfig() Config {
	return Config{WorkerCount: 1, PollInterval: 50 * time.Millisecond}
}

// Factory creates bound processors
type Factory interface {
	Create(queueID string, b bean.Bean) (processor.Processor, error)
}

// Service consumes a single bean queue
type Service struct {
	id      string
	config  Config
	queue   messaging.Queue[bean.Envelope]
	factory Factory
	topic   processor.StatusTopic
	logger  *slog.Logger

	mux      sync.Mutex
	running  map[string]processor.Processor
	order    []string
	paused   bool
	resume   chan struct{}
	started  bool
	stopping bool
	failures int

	group    errgroup.Group
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a consumer of queue identified by id
func New(id string, queue messaging.Queue[bean.Envelope], factory Factory, topic processor.StatusTopic, options ...Option) (*Service, error) {
	if queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("processor factory is required")
	}
	ret := &Service{
		id:      id,
		config:  DefaultConfig(),
		queue:   queue,
		factory: factory,
		topic:   topic,
		logger:  slog.Default(),
		running: map[string]processor.Processor{},
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.config.WorkerCount <= 0 {
		ret.config.WorkerCount = 1
	}
	if ret.config.PollInterval <= 0 {
		ret.config.PollInterval = DefaultConfig().PollInterval
	}
	ret.logger = ret.logger.With("queue", id)
	return ret, nil
}

// ID returns the consumed queue ID
func (s *Service) ID() string {
	return s.id
}

// Start launches workers
func (s *Service) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.stopping {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.WorkerCount; i++ {
		worker := i
		s.group.Go(func() error {
			s.run(ctx, worker)
			return nil
		})
	}
	return nil
}

func (s *Service) run(ctx context.Context, worker int) {
	for {
		if !s.awaitResume(ctx) {
			return
		}
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, messaging.ErrClosed) {
				return
			}
			s.logger.Warn("failed to consume", "worker", worker, "error", err)
			if !s.idle(ctx) {
				return
			}
			continue
		}
		if msg == nil {
			if !s.idle(ctx) {
				return
			}
			continue
		}
		s.process(ctx, msg)
	}
}

// process executes a single consumed bean; the message is always acknowledged
// since the bean outcome is reported through its status
func (s *Service) process(ctx context.Context, msg messaging.Message[bean.Envelope]) {
	defer func() {
		if err := msg.Ack(); err != nil {
			s.logger.Warn("failed to ack", "error", err)
		}
	}()
	envelope := msg.T()
	if envelope == nil || envelope.Bean == nil {
		s.logger.Warn("skipping empty message")
		return
	}
	aBean := envelope.Bean
	ctx, span := tracing.Start(ctx, "consumer.process", tracing.KindConsumer)
	span.Bean(aBean).Queue(s.id)
	var err error
	defer func() { span.End(err) }()

	if !s.awaitResume(ctx) {
		s.conclude(ctx, aBean, bean.Update{Status: status.Terminated, Message: bean.Text(removedMessage)})
		return
	}
	p, err := s.factory.Create(s.id, aBean)
	if err != nil {
		s.logger.Warn("rejected bean", "bean", aBean.GetID(), "name", aBean.GetName(), "error", err)
		s.conclude(ctx, aBean, bean.Update{Status: status.Failed, Message: bean.Text("Validation failed: " + err.Error())})
		s.onFailure()
		return
	}
	if !s.admit(ctx, p) {
		s.conclude(ctx, aBean, bean.Update{Status: status.Terminated, Message: bean.Text(removedMessage)})
		return
	}
	s.logger.Debug("processing bean", "bean", aBean.GetID(), "name", aBean.GetName(), "kind", aBean.Kind())
	started := clock.Now()
	err = p.Execute(ctx)
	s.unregister(aBean.GetID())
	if err != nil {
		s.logger.Warn("bean failed", "bean", aBean.GetID(), "name", aBean.GetName(), "elapsed", clock.Since(started), "error", err)
		s.onFailure()
		return
	}
	s.logger.Debug("bean processed", "bean", aBean.GetID(), "elapsed", clock.Since(started))
}

func (s *Service) conclude(ctx context.Context, aBean bean.Bean, update bean.Update) {
	if err := processor.Publish(ctx, s.topic, s.id, aBean, update); err != nil && !errors.Is(err, bean.ErrFinalStatus) {
		s.logger.Warn("failed to broadcast", "bean", aBean.GetID(), "status", update.Status, "error", err)
	}
}

// admit registers p once consumption is not held; false means the consumer is stopping
func (s *Service) admit(ctx context.Context, p processor.Processor) bool {
	for {
		registered, held := s.register(p)
		if !held {
			return registered
		}
		if !s.awaitResume(ctx) {
			return false
		}
	}
}

// register refuses p while paused so a Pause issued after awaitResume is not missed
func (s *Service) register(p processor.Processor) (registered, held bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.stopping {
		return false, false
	}
	if s.paused {
		return false, true
	}
	id := p.Bean().GetID()
	s.running[id] = p
	s.order = append(s.order, id)
	return true, false
}

func (s *Service) unregister(id string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.running, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Service) onFailure() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.failures++
	if s.config.PauseOnFailure && !s.stopping && !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
		s.logger.Info("queue paused after failure")
	}
}

// awaitResume blocks while paused; false means the consumer is stopping
func (s *Service) awaitResume(ctx context.Context) bool {
	for {
		s.mux.Lock()
		stopping, paused, resume := s.stopping, s.paused, s.resume
		s.mux.Unlock()
		if stopping {
			return false
		}
		if !paused {
			return ctx.Err() == nil
		}
		select {
		case <-resume:
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Service) idle(ctx context.Context) bool {
	timer := time.NewTimer(s.config.PollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// processors returns running processors in start order
func (s *Service) processors() []processor.Processor {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make([]processor.Processor, 0, len(s.order))
	for _, id := range s.order {
		ret = append(ret, s.running[id])
	}
	return ret
}

// Pause holds consumption and pauses running processors
func (s *Service) Pause(ctx context.Context) error {
	s.mux.Lock()
	if s.stopping {
		s.mux.Unlock()
		return ErrStopped
	}
	if !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
	}
	s.mux.Unlock()
	var errs []error
	for _, p := range s.processors() {
		if err := p.Pause(ctx); err != nil && !errors.Is(err, processor.ErrNotActive) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resume resumes running processors and consumption
func (s *Service) Resume(ctx context.Context) error {
	var errs []error
	for _, p := range s.processors() {
		if err := p.Resume(ctx); err != nil && !errors.Is(err, processor.ErrNotActive) {
			errs = append(errs, err)
		}
	}
	s.mux.Lock()
	if s.paused {
		s.paused = false
		close(s.resume)
	}
	s.mux.Unlock()
	return errors.Join(errs...)
}

// IsPaused returns true when consumption is held
func (s *Service) IsPaused() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.paused
}

// Failures returns number of failed beans
func (s *Service) Failures() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.failures
}

// Running returns IDs of beans being processed, sorted
func (s *Service) Running() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make([]string, 0, len(s.running))
	for id := range s.running {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// Processor returns the processor running the bean
func (s *Service) Processor(beanID string) (processor.Processor, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	p, ok := s.running[beanID]
	return p, ok
}

// Command applies a pause, resume or terminate request to a running bean
func (s *Service) Command(ctx context.Context, beanID string, command status.Status) error {
	p, ok := s.Processor(beanID)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotRunning, beanID)
	}
	switch command {
	case status.RequestPause, status.Paused:
		return p.Pause(ctx)
	case status.RequestResume, status.Resumed:
		return p.Resume(ctx)
	case status.RequestTerminate, status.Terminated:
		return p.Terminate(ctx)
	}
	return fmt.Errorf("unsupported command: %v", command)
}

// Stop terminates running processors, concludes pending beans as TERMINATED
// and waits for workers to exit
func (s *Service) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mux.Lock()
		s.stopping = true
		if s.paused {
			s.paused = false
			close(s.resume)
		}
		s.mux.Unlock()
		var errs []error
		for _, p := range s.processors() {
			if tErr := p.Terminate(ctx); tErr != nil {
				errs = append(errs, tErr)
			}
		}
		if drainer, ok := s.queue.(messaging.Drainer[bean.Envelope]); ok {
			pending, dErr := drainer.Drain(ctx)
			if dErr != nil {
				errs = append(errs, dErr)
			}
			for _, envelope := range pending {
				if envelope != nil && envelope.Bean != nil {
					s.conclude(ctx, envelope.Bean, bean.Update{Status: status.Terminated, Message: bean.Text(removedMessage)})
				}
			}
		}
		if closer, ok := s.queue.(interface{ Close() }); ok {
			closer.Close()
		}
		// workers never return an error; Wait only joins them
		_ = s.group.Wait()
		if s.cancel != nil {
			s.cancel()
		}
		err = errors.Join(errs...)
	})
	return err
}
