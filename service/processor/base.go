package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/event"
	"github.com/viant/atomq/tracing"
)

type hook func(ctx context.Context) error

type outcome int

const (
	outcomeDone outcome = iota
	outcomeTerminated
)

// Base implements the lifecycle shared by all processors: binding, ordered
// broadcasting, cooperative pause and idempotent termination.  Concrete
// processors supply Execute and the device specific hooks.
type Base struct {
	env     *Env
	queueID string
	logger  *slog.Logger

	mux     sync.Mutex
	bean    bean.Bean
	started bool

	broadcastMux sync.Mutex
	ctrlMux      sync.Mutex
	gate         gate

	terminated      chan struct{}
	terminateOnce   sync.Once
	terminateSource string

	onPause     hook
	onResume    hook
	onTerminate hook
}

func newBase(env *Env, queueID string) *Base {
	return &Base{env: env, queueID: queueID, logger: env.logger(), terminated: make(chan struct{})}
}

// Bind attaches the bean
func (b *Base) Bind(aBean bean.Bean) error {
	if aBean == nil {
		return bean.ErrNilBean
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.bean != nil || b.started {
		return ErrAlreadyBound
	}
	b.bean = aBean
	b.logger = b.logger.With("bean", aBean.GetID(), "name", aBean.GetName(), "kind", aBean.Kind())
	return nil
}

// Bean returns the bound bean
func (b *Base) Bean() bean.Bean {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.bean
}

// QueueID returns the queue the bean was consumed from
func (b *Base) QueueID() string {
	return b.queueID
}

func (b *Base) start() error {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.bean == nil {
		return ErrNotBound
	}
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true
	return nil
}

// Broadcast applies update to the bound bean and publishes the snapshot
func (b *Base) Broadcast(ctx context.Context, update bean.Update) error {
	aBean := b.Bean()
	if aBean == nil {
		return ErrNotBound
	}
	b.broadcastMux.Lock()
	defer b.broadcastMux.Unlock()
	return Publish(ctx, b.env.Topic, b.queueID, aBean, update)
}

func (b *Base) broadcast(ctx context.Context, update bean.Update) {
	if err := b.Broadcast(ctx, update); err != nil {
		if !errors.Is(err, bean.ErrFinalStatus) {
			b.logger.Warn("failed to broadcast", "status", update.Status, "error", err)
		}
		return
	}
	if update.Status == "" {
		return
	}
	if span, ok := tracing.FromContext(ctx); ok {
		span.Status(update.Status, b.Bean().GetPercentComplete())
	}
}

func (b *Base) isTerminated() bool {
	select {
	case <-b.terminated:
		return true
	default:
		return false
	}
}

// awaitGate blocks while paused; false means the bean was terminated meanwhile
func (b *Base) awaitGate(ctx context.Context) bool {
	select {
	case <-b.gate.wait():
	case <-b.terminated:
		return false
	case <-ctx.Done():
		_ = b.Terminate(parentContext(ctx))
		return false
	}
	return !b.isTerminated()
}

// concludeTerminated broadcasts TERMINATED on behalf of whoever requested the termination
func (b *Base) concludeTerminated(ctx context.Context, message string) {
	ctx = context.WithoutCancel(ctx)
	if b.terminateSource != "" {
		ctx = event.WithSource(ctx, b.terminateSource)
	}
	b.broadcast(ctx, bean.Update{Status: status.Terminated, Message: bean.Text(message)})
}

// fail broadcasts FAILED and returns err
func (b *Base) fail(ctx context.Context, message string, err error) error {
	b.broadcast(ctx, bean.Update{Status: status.Failed, Message: bean.Text(message)})
	return err
}

// Pause requests pause, runs the pause hook and confirms PAUSED
func (b *Base) Pause(ctx context.Context) error {
	aBean := b.Bean()
	if aBean == nil {
		return ErrNotBound
	}
	b.ctrlMux.Lock()
	defer b.ctrlMux.Unlock()
	if current := aBean.GetStatus(); current.IsFinal() || current.IsTerminated() {
		return fmt.Errorf("%w: %v is %v", ErrNotActive, aBean.GetName(), current)
	}
	if !b.gate.pause() {
		return nil
	}
	b.broadcast(ctx, bean.Update{Status: status.RequestPause})
	if b.onPause != nil {
		if err := b.onPause(ctx); err != nil {
			b.logger.Warn("pause hook failed", "error", err)
		}
	}
	b.broadcast(ctx, bean.Update{Status: status.Paused})
	return nil
}

// Resume requests resume, runs the resume hook and returns the bean to RUNNING
func (b *Base) Resume(ctx context.Context) error {
	aBean := b.Bean()
	if aBean == nil {
		return ErrNotBound
	}
	b.ctrlMux.Lock()
	defer b.ctrlMux.Unlock()
	if !b.gate.paused() {
		return nil
	}
	if current := aBean.GetStatus(); current.IsFinal() || current.IsTerminated() {
		return fmt.Errorf("%w: %v is %v", ErrNotActive, aBean.GetName(), current)
	}
	b.broadcast(ctx, bean.Update{Status: status.RequestResume})
	if b.onResume != nil {
		if err := b.onResume(ctx); err != nil {
			b.logger.Warn("resume hook failed", "error", err)
		}
	}
	b.gate.resume()
	b.broadcast(ctx, bean.Update{Status: status.Resumed})
	b.broadcast(ctx, bean.Update{Status: status.Running})
	return nil
}

// Terminate requests termination once; Execute concludes with TERMINATED
func (b *Base) Terminate(ctx context.Context) error {
	aBean := b.Bean()
	if aBean == nil {
		return ErrNotBound
	}
	var err error
	b.terminateOnce.Do(func() {
		b.terminateSource = event.SourceFrom(ctx)
		if !aBean.GetStatus().IsFinal() {
			b.broadcast(ctx, bean.Update{Status: status.RequestTerminate})
		}
		close(b.terminated)
		if b.onTerminate != nil {
			err = b.onTerminate(ctx)
		}
	})
	return err
}

// supervise waits for the listener latch while serving child commands
func (b *Base) supervise(ctx context.Context, listener *QueueListener) outcome {
	for {
		select {
		case <-listener.Done():
			if b.isTerminated() {
				return outcomeTerminated
			}
			return outcomeDone
		case cmd := <-listener.Commands():
			b.dispatch(ctx, cmd)
		case <-b.terminated:
			return outcomeTerminated
		case <-ctx.Done():
			_ = b.Terminate(parentContext(ctx))
			return outcomeTerminated
		}
	}
}

func (b *Base) dispatch(ctx context.Context, cmd Command) {
	ctx = event.WithSource(ctx, event.SourceListener)
	var err error
	switch cmd.Status {
	case status.RequestPause:
		err = b.Pause(ctx)
	case status.RequestResume:
		err = b.Resume(ctx)
	case status.RequestTerminate:
		err = b.Terminate(ctx)
	default:
		return
	}
	if err != nil {
		b.logger.Warn("failed to apply child command", "command", cmd.Status, "child", cmd.ChildName, "error", err)
	}
}

// parentContext tags ctx as a command from the owning parent
func parentContext(ctx context.Context) context.Context {
	return event.WithSource(context.WithoutCancel(ctx), event.SourceParent)
}

// runDevice calls fn on its own goroutine and reports its result exactly once
func runDevice(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("%w: %v", ErrDevicePanic, r)
			}
		}()
		result <- fn(ctx)
	}()
	return result
}
