package processor

import (
	"context"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/event"
)

// Processor drives a single bean
type Processor interface {
	// Execute runs the bean to a final status; it blocks until then
	Execute(ctx context.Context) error
	// Pause holds the bean; pausing a paused bean is a no-op
	Pause(ctx context.Context) error
	// Resume releases a paused bean
	Resume(ctx context.Context) error
	// Terminate aborts the bean; repeated calls are no-ops
	Terminate(ctx context.Context) error
	// BeanKind returns the kind the processor handles
	BeanKind() bean.Kind
	// Bean returns the bound bean
	Bean() bean.Bean
	// Bind attaches the bean before execution
	Bind(b bean.Bean) error
}

// StatusTopic is the broadcast channel for bean snapshots
type StatusTopic interface {
	Publish(ctx context.Context, evt *event.Event[bean.Envelope]) error
	Subscribe(handler func(*event.Event[bean.Envelope])) (*event.Listener[bean.Envelope], error)
	Unsubscribe(listener *event.Listener[bean.Envelope])
}

// QueueRegistry manages queues on behalf of composite processors
type QueueRegistry interface {
	// CreateChildQueue creates and starts an active queue owned by ownerID
	CreateChildQueue(ctx context.Context, ownerID string) (string, error)
	// Submit marks beans SUBMITTED then QUEUED and enqueues them
	Submit(ctx context.Context, queueID string, beans ...bean.Bean) error
	PauseQueue(ctx context.Context, queueID string) error
	ResumeQueue(ctx context.Context, queueID string) error
	// StopQueue terminates running beans and drains pending ones
	StopQueue(ctx context.Context, queueID string) error
	DeregisterQueue(ctx context.Context, queueID string) error
}
