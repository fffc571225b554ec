// Package registry owns the job queue and the active queues created for
// composite beans.  Each queue is backed by a consumer; queue names follow
// "<root>.job-queue" and "<root>.active-queue-<n>-<owner>".
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/consumer"
	"github.com/viant/atomq/service/event"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/processor"
)

var (
	// ErrUnknownQueue is returned for unregistered queue IDs
	ErrUnknownQueue = errors.New("registry: unknown queue")

	// ErrQueueRunning is returned when deregistering a queue that was not stopped
	ErrQueueRunning = errors.New("registry: queue still running")

	// ErrNotStarted is returned when using the registry before Start
	ErrNotStarted = errors.New("registry: not started")

	// ErrWrongBeanKind is returned when a bean is submitted to the wrong kind of queue
	ErrWrongBeanKind = errors.New("registry: bean cannot be submitted to this queue")
)

// DefaultRoot is the default queue name prefix
const DefaultRoot = "atomq"

// Config represents registry configuration
type Config struct {
	// Root prefixes queue names
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
	// JobQueue configures the job queue consumer
	JobQueue consumer.Config `json:"jobQueue,omitempty" yaml:"jobQueue,omitempty"`
	// ActiveQueue configures consumers of active queues
	ActiveQueue consumer.Config `json:"activeQueue,omitempty" yaml:"activeQueue,omitempty"`
}

// DefaultConfig returns the default configuration; the job queue pauses after a failed job
func DefaultConfig() Config {
	job := consumer.DefaultConfig()
	job.PauseOnFailure = true
	return Config{Root: DefaultRoot, JobQueue: job, ActiveQueue: consumer.DefaultConfig()}
}

// Info describes a registered queue
type Info struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"ownerId,omitempty"`
	Job      bool     `json:"job"`
	Paused   bool     `json:"paused"`
	Stopped  bool     `json:"stopped"`
	Running  []string `json:"running,omitempty"`
	Failures int      `json:"failures"`
}

type entry struct {
	id       string
	ownerID  string
	job      bool
	queue    messaging.Queue[bean.Envelope]
	consumer *consumer.Service
	stopped  bool
}

// Registry manages queues
type Registry struct {
	config  Config
	events  *event.Service
	topic   processor.StatusTopic
	factory consumer.Factory
	logger  *slog.Logger

	mux        sync.RWMutex
	ctx        context.Context
	queues     map[string]*entry
	order      []string
	seq        int
	jobQueueID string
}

// Option configures a Registry
type Option func(r *Registry)

// WithConfig sets registry configuration
func WithConfig(config Config) Option {
	return func(r *Registry) {
		r.config = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry creating queues through events
func New(events *event.Service, topic processor.StatusTopic, options ...Option) *Registry {
	ret := &Registry{config: DefaultConfig(), events: events, topic: topic, logger: slog.Default(), queues: map[string]*entry{}}
	for _, opt := range options {
		opt(ret)
	}
	if ret.config.Root == "" {
		ret.config.Root = DefaultRoot
	}
	return ret
}

// SetFactory sets the processor factory used by queue consumers
func (r *Registry) SetFactory(factory consumer.Factory) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.factory = factory
}

// Start creates and starts the job queue; consumers run until ctx is cancelled or the queue stopped
func (r *Registry) Start(ctx context.Context) error {
	r.mux.Lock()
	if r.ctx != nil {
		r.mux.Unlock()
		return nil
	}
	r.ctx = ctx
	r.jobQueueID = r.config.Root + ".job-queue"
	r.mux.Unlock()
	return r.create(r.jobQueueID, "", true)
}

// JobQueueID returns the job queue ID
func (r *Registry) JobQueueID() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.jobQueueID
}

// CreateChildQueue creates and starts an active queue owned by ownerID
func (r *Registry) CreateChildQueue(ctx context.Context, ownerID string) (string, error) {
	r.mux.Lock()
	r.seq++
	id := fmt.Sprintf("%s.active-queue-%d-%s", r.config.Root, r.seq, shortID(ownerID))
	r.mux.Unlock()
	if err := r.create(id, ownerID, false); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Registry) create(id, ownerID string, job bool) error {
	r.mux.RLock()
	ctx, factory := r.ctx, r.factory
	r.mux.RUnlock()
	if ctx == nil {
		return ErrNotStarted
	}
	if factory == nil {
		return fmt.Errorf("processor factory was not set")
	}
	queue, err := event.QueueOf[bean.Envelope](r.events, id)
	if err != nil {
		return fmt.Errorf("failed to create queue %v: %w", id, err)
	}
	config := r.config.ActiveQueue
	if job {
		config = r.config.JobQueue
	}
	aConsumer, err := consumer.New(id, queue, factory, r.topic, consumer.WithConfig(config), consumer.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.mux.Lock()
	if _, ok := r.queues[id]; ok {
		r.mux.Unlock()
		return fmt.Errorf("queue %v already registered", id)
	}
	r.queues[id] = &entry{id: id, ownerID: ownerID, job: job, queue: queue, consumer: aConsumer}
	r.order = append(r.order, id)
	r.mux.Unlock()
	r.logger.Debug("registered queue", "queue", id, "owner", ownerID)
	return aConsumer.Start(ctx)
}

func (r *Registry) lookup(queueID string) (*entry, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	ret, ok := r.queues[queueID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownQueue, queueID)
	}
	return ret, nil
}

// Submit marks beans SUBMITTED then QUEUED, broadcasting both, and enqueues them.
// The job queue accepts queue beans only; active queues accept atoms only.
func (r *Registry) Submit(ctx context.Context, queueID string, beans ...bean.Bean) error {
	anEntry, err := r.lookup(queueID)
	if err != nil {
		return err
	}
	for _, aBean := range beans {
		if aBean == nil {
			return bean.ErrNilBean
		}
		if err = r.checkKind(anEntry, aBean); err != nil {
			return err
		}
	}
	for _, aBean := range beans {
		if err = aBean.Base().MarkSubmitted(); err != nil {
			return fmt.Errorf("failed to submit %v: %w", aBean.GetName(), err)
		}
		if err = processor.Publish(ctx, r.topic, queueID, aBean, bean.Update{}); err != nil {
			return err
		}
		if err = processor.Publish(ctx, r.topic, queueID, aBean, bean.Update{Status: status.Queued}); err != nil {
			return err
		}
		if err = anEntry.queue.Publish(ctx, bean.Wrap(aBean)); err != nil {
			return fmt.Errorf("failed to enqueue %v: %w", aBean.GetName(), err)
		}
	}
	return nil
}

func (r *Registry) checkKind(anEntry *entry, aBean bean.Bean) error {
	if anEntry.job {
		if _, ok := aBean.(bean.QueueBean); !ok {
			return fmt.Errorf("%w: %v to job queue", ErrWrongBeanKind, aBean.Kind())
		}
		return nil
	}
	if _, ok := aBean.(bean.Atom); !ok {
		return fmt.Errorf("%w: %v to active queue", ErrWrongBeanKind, aBean.Kind())
	}
	return nil
}

// PauseQueue holds the queue and pauses its running beans
func (r *Registry) PauseQueue(ctx context.Context, queueID string) error {
	anEntry, err := r.lookup(queueID)
	if err != nil {
		return err
	}
	return anEntry.consumer.Pause(ctx)
}

// ResumeQueue resumes the queue and its paused beans
func (r *Registry) ResumeQueue(ctx context.Context, queueID string) error {
	anEntry, err := r.lookup(queueID)
	if err != nil {
		return err
	}
	return anEntry.consumer.Resume(ctx)
}

// StopQueue terminates running beans, concludes pending ones and waits for the consumer
func (r *Registry) StopQueue(ctx context.Context, queueID string) error {
	anEntry, err := r.lookup(queueID)
	if err != nil {
		return err
	}
	err = anEntry.consumer.Stop(ctx)
	r.mux.Lock()
	anEntry.stopped = true
	r.mux.Unlock()
	return err
}

// DeregisterQueue removes a stopped queue
func (r *Registry) DeregisterQueue(ctx context.Context, queueID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	anEntry, ok := r.queues[queueID]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownQueue, queueID)
	}
	if !anEntry.stopped {
		return fmt.Errorf("%w: %v", ErrQueueRunning, queueID)
	}
	delete(r.queues, queueID)
	for i, id := range r.order {
		if id == queueID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Debug("deregistered queue", "queue", queueID)
	return nil
}

// Queue returns queue info
func (r *Registry) Queue(queueID string) (*Info, error) {
	anEntry, err := r.lookup(queueID)
	if err != nil {
		return nil, err
	}
	return r.info(anEntry), nil
}

// Queues returns every registered queue in creation order
func (r *Registry) Queues() []*Info {
	r.mux.RLock()
	entries := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.queues[id])
	}
	r.mux.RUnlock()
	ret := make([]*Info, 0, len(entries))
	for _, anEntry := range entries {
		ret = append(ret, r.info(anEntry))
	}
	return ret
}

func (r *Registry) info(anEntry *entry) *Info {
	r.mux.RLock()
	stopped := anEntry.stopped
	r.mux.RUnlock()
	return &Info{
		ID:       anEntry.id,
		OwnerID:  anEntry.ownerID,
		Job:      anEntry.job,
		Paused:   anEntry.consumer.IsPaused(),
		Stopped:  stopped,
		Running:  anEntry.consumer.Running(),
		Failures: anEntry.consumer.Failures(),
	}
}

// Processor finds the processor running beanID in any queue
func (r *Registry) Processor(beanID string) (processor.Processor, bool) {
	r.mux.RLock()
	entries := make([]*entry, 0, len(r.queues))
	for _, anEntry := range r.queues {
		entries = append(entries, anEntry)
	}
	r.mux.RUnlock()
	for _, anEntry := range entries {
		if p, ok := anEntry.consumer.Processor(beanID); ok {
			return p, true
		}
	}
	return nil, false
}

// Command applies a pause, resume or terminate request to a running bean in any queue
func (r *Registry) Command(ctx context.Context, beanID string, command status.Status) error {
	r.mux.RLock()
	entries := make([]*entry, 0, len(r.queues))
	for _, anEntry := range r.queues {
		entries = append(entries, anEntry)
	}
	r.mux.RUnlock()
	for _, anEntry := range entries {
		if _, ok := anEntry.consumer.Processor(beanID); ok {
			return anEntry.consumer.Command(ctx, beanID, command)
		}
	}
	return fmt.Errorf("%w: %v", consumer.ErrNotRunning, beanID)
}

// Shutdown stops the job queue, which recursively stops active queues, then any leftover queue
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs []error
	if jobQueueID := r.JobQueueID(); jobQueueID != "" {
		if _, err := r.lookup(jobQueueID); err == nil {
			errs = append(errs, r.StopQueue(ctx, jobQueueID))
		}
	}
	r.mux.RLock()
	ids := append([]string(nil), r.order...)
	r.mux.RUnlock()
	for i := len(ids) - 1; i >= 0; i-- {
		errs = append(errs, r.StopQueue(ctx, ids[i]))
		errs = append(errs, r.DeregisterQueue(ctx, ids[i]))
	}
	return errors.Join(errs...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ processor.QueueRegistry = (*Registry)(nil)
