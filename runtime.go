package atomq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/event"
	"github.com/viant/atomq/service/plan"
	"github.com/viant/atomq/service/processor"
	"github.com/viant/atomq/service/registry"
	"github.com/viant/atomq/service/schedule"
	"github.com/viant/atomq/service/statusset"
)

const waitPollInterval = 20 * time.Millisecond

// Runtime represents a running engine
type Runtime struct {
	config    *Config
	events    *event.Service
	topic     *event.Topic[bean.Envelope]
	registry  *registry.Registry
	factory   *processor.Factory
	statusSet *statusset.Service
	plans     *plan.Service
	scheduler *schedule.Service
	logger    *slog.Logger
}

// Start starts recording snapshots and consuming the job queue
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.statusSet.Start(); err != nil {
		return err
	}
	if err := r.registry.Start(ctx); err != nil {
		return err
	}
	r.scheduler.Start(context.WithoutCancel(ctx))
	return nil
}

// Shutdown stops every queue, terminating running beans, then closes the status topic
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.scheduler.Stop()
	err := r.registry.Shutdown(ctx)
	if closeErr := r.statusSet.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	r.events.Close()
	return err
}

// Submit validates and submits a job to the job queue, it returns the job ID
func (r *Runtime) Submit(ctx context.Context, job bean.QueueBean) (string, error) {
	if job == nil {
		return "", bean.ErrNilBean
	}
	if err := r.registry.Submit(ctx, r.registry.JobQueueID(), job); err != nil {
		return "", err
	}
	return job.GetID(), nil
}

// LoadPlan loads a YAML plan into a task bean
func (r *Runtime) LoadPlan(ctx context.Context, location string) (*bean.TaskBean, error) {
	return r.plans.Load(ctx, location)
}

// DecodePlan decodes an in memory YAML plan into a task bean
func (r *Runtime) DecodePlan(data []byte) (*bean.TaskBean, error) {
	return r.plans.DecodeYAML(data)
}

// SubmitPlan loads the plan at location and submits it
func (r *Runtime) SubmitPlan(ctx context.Context, location string) (string, error) {
	task, err := r.LoadPlan(ctx, location)
	if err != nil {
		return "", err
	}
	return r.Submit(ctx, task)
}

// Validate checks a bean the way the queue would before processing it
func (r *Runtime) Validate(aBean bean.Bean) error {
	return r.factory.Validate(aBean)
}

// Pause requests a pause of a running bean
func (r *Runtime) Pause(ctx context.Context, beanID string) error {
	return r.command(ctx, beanID, status.RequestPause)
}

// Resume requests a paused bean to resume
func (r *Runtime) Resume(ctx context.Context, beanID string) error {
	return r.command(ctx, beanID, status.RequestResume)
}

// Terminate requests termination of a running bean
func (r *Runtime) Terminate(ctx context.Context, beanID string) error {
	return r.command(ctx, beanID, status.RequestTerminate)
}

func (r *Runtime) command(ctx context.Context, beanID string, command status.Status) error {
	r.logger.Info("operator command", "bean_id", beanID, "status", command)
	return r.registry.Command(event.WithSource(ctx, event.SourceOperator), beanID, command)
}

// JobQueueID returns the job queue ID
func (r *Runtime) JobQueueID() string {
	return r.registry.JobQueueID()
}

// PauseQueue holds consumption of a queue
func (r *Runtime) PauseQueue(ctx context.Context, queueID string) error {
	return r.registry.PauseQueue(ctx, queueID)
}

// ResumeQueue resumes consumption of a queue, e.g. the job queue after a failed job
func (r *Runtime) ResumeQueue(ctx context.Context, queueID string) error {
	return r.registry.ResumeQueue(ctx, queueID)
}

// StopQueue terminates running beans and removes pending ones
func (r *Runtime) StopQueue(ctx context.Context, queueID string) error {
	return r.registry.StopQueue(ctx, queueID)
}

// Queue returns queue details
func (r *Runtime) Queue(queueID string) (*registry.Info, error) {
	return r.registry.Queue(queueID)
}

// Queues lists registered queues in creation order
func (r *Runtime) Queues() []*registry.Info {
	return r.registry.Queues()
}

// Bean returns the latest broadcast snapshot of a bean
func (r *Runtime) Bean(ctx context.Context, beanID string) (bean.Bean, error) {
	return r.statusSet.Load(ctx, beanID)
}

// List returns latest snapshots, optionally filtered by statuses
func (r *Runtime) List(ctx context.Context, statuses ...status.Status) ([]bean.Bean, error) {
	return r.statusSet.List(ctx, statuses...)
}

// Subscribe registers handler for every bean snapshot published from now on
func (r *Runtime) Subscribe(handler func(*event.Event[bean.Envelope])) (*event.Listener[bean.Envelope], error) {
	return r.topic.Subscribe(handler)
}

// Unsubscribe removes a listener created by Subscribe
func (r *Runtime) Unsubscribe(listener *event.Listener[bean.Envelope]) {
	r.topic.Unsubscribe(listener)
}

// Wait blocks until the bean reaches a final status; on timeout it returns
// the last snapshot seen with an error.
func (r *Runtime) Wait(ctx context.Context, beanID string, timeout time.Duration) (bean.Bean, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		aBean, err := r.statusSet.Load(ctx, beanID)
		if err != nil && !errors.Is(err, statusset.ErrNotFound) {
			return nil, err
		}
		if aBean != nil && aBean.GetStatus().IsFinal() {
			return aBean, nil
		}
		select {
		case <-ctx.Done():
			return aBean, fmt.Errorf("timeout waiting for bean %q: %w", beanID, ctx.Err())
		case <-ticker.C:
		}
	}
}
