package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
)

// AtomQueueProcessor runs the children of a composite bean on a dedicated
// active queue and supervises them until they conclude.
type AtomQueueProcessor struct {
	owner   *Base
	mux     sync.Mutex
	queueID string
}

func newAtomQueueProcessor(owner *Base) *AtomQueueProcessor {
	return &AtomQueueProcessor{owner: owner}
}

// QueueID returns the active queue ID while children run
func (a *AtomQueueProcessor) QueueID() string {
	a.mux.Lock()
	defer a.mux.Unlock()
	return a.queueID
}

// Run creates the active queue, submits children and waits for them
func (a *AtomQueueProcessor) Run(ctx context.Context) (*QueueListener, outcome, error) {
	owner := a.owner
	composite, ok := owner.Bean().(bean.HasChildQueue)
	if !ok {
		return nil, outcomeDone, fmt.Errorf("%w: %v has no child queue", ErrUnsupportedBean, owner.Bean().Kind())
	}
	registry := owner.env.Registry
	owner.broadcast(ctx, bean.Update{Status: status.Running, Percent: bean.Percent(0), Message: bean.Text("Registering new active queue.")})
	queueID, err := registry.CreateChildQueue(ctx, composite.GetID())
	if err != nil {
		return nil, outcomeDone, fmt.Errorf("failed to create active queue: %w", err)
	}
	defer a.tidy(ctx, queueID)
	a.register(ctx, queueID)

	atoms := composite.Children()
	children := make([]bean.Bean, 0, len(atoms))
	for _, atom := range atoms {
		child := atom.Clone()
		child.Base().Inherit(composite.Base())
		children = append(children, child)
	}
	owner.broadcast(ctx, bean.Update{Percent: bean.Percent(2), Message: bean.Text("Submitting atoms to active queue.")})
	listener := NewQueueListener(owner, children, owner.env.completePercent())
	subscription, err := owner.env.Topic.Subscribe(listener.Handle)
	if err != nil {
		return nil, outcomeDone, fmt.Errorf("failed to subscribe active queue listener: %w", err)
	}
	defer owner.env.Topic.Unsubscribe(subscription)
	if err = registry.Submit(ctx, queueID, children...); err != nil {
		return nil, outcomeDone, fmt.Errorf("failed to submit atoms to %v: %w", queueID, err)
	}
	owner.broadcast(ctx, bean.Update{Message: bean.Text("Waiting for active queue to complete.")})
	return listener, owner.supervise(ctx, listener), nil
}

// register records the active queue, holding it when the owner is already paused
func (a *AtomQueueProcessor) register(ctx context.Context, queueID string) {
	a.owner.ctrlMux.Lock()
	defer a.owner.ctrlMux.Unlock()
	a.mux.Lock()
	a.queueID = queueID
	a.mux.Unlock()
	if a.owner.gate.paused() {
		if err := a.owner.env.Registry.PauseQueue(parentContext(ctx), queueID); err != nil {
			a.owner.logger.Warn("failed to pause active queue", "queue", queueID, "error", err)
		}
	}
}

// tidy stops and deregisters the active queue
func (a *AtomQueueProcessor) tidy(ctx context.Context, queueID string) {
	ctx = parentContext(ctx)
	a.mux.Lock()
	a.queueID = ""
	a.mux.Unlock()
	registry := a.owner.env.Registry
	if err := registry.StopQueue(ctx, queueID); err != nil {
		a.owner.logger.Warn("failed to stop active queue", "queue", queueID, "error", err)
	}
	if err := registry.DeregisterQueue(ctx, queueID); err != nil {
		a.owner.logger.Warn("failed to deregister active queue", "queue", queueID, "error", err)
	}
}

func (a *AtomQueueProcessor) pauseQueue(ctx context.Context) error {
	if queueID := a.QueueID(); queueID != "" {
		return a.owner.env.Registry.PauseQueue(parentContext(ctx), queueID)
	}
	return nil
}

func (a *AtomQueueProcessor) resumeQueue(ctx context.Context) error {
	if queueID := a.QueueID(); queueID != "" {
		return a.owner.env.Registry.ResumeQueue(parentContext(ctx), queueID)
	}
	return nil
}
