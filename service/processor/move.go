package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/device"
	"github.com/viant/atomq/tracing"
)

const moveAborted = "Move aborted before completion (requested)."

// Move drives a MoveAtom through the positioner
type Move struct {
	*Base
	mux    sync.Mutex
	cancel context.CancelFunc
}

// NewMove creates a move processor
func NewMove(env *Env, queueID string) *Move {
	ret := &Move{Base: newBase(env, queueID)}
	ret.onTerminate = ret.abort
	ret.onPause = ret.pauseDevice
	ret.onResume = ret.resumeDevice
	return ret
}

func (p *Move) BeanKind() bean.Kind { return bean.KindMoveAtom }

// Execute moves every configured device and blocks until they settle
func (p *Move) Execute(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "processor.Move", tracing.KindInternal)
	defer func() { span.End(err) }()
	if err = p.start(); err != nil {
		return err
	}
	atom, ok := p.Bean().(*bean.MoveAtom)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnsupportedBean, p.Bean().Kind())
	}
	span.Bean(atom)
	if !p.awaitGate(ctx) {
		p.concludeTerminated(ctx, moveAborted)
		return nil
	}
	p.broadcast(ctx, bean.Update{Status: status.Running, Percent: bean.Percent(0), Message: bean.Text("Creating position from configured values.")})
	targets := atom.Targets()
	p.broadcast(ctx, bean.Update{Percent: bean.Percent(10), Message: bean.Text("Position created for " + strings.Join(atom.Devices(), ", ") + ".")})
	p.broadcast(ctx, bean.Update{Percent: bean.Percent(20), Message: bean.Text("Moving device(s) to requested position.")})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.setCancel(cancel)
	result := runDevice(runCtx, func(ctx context.Context) error {
		return p.env.Positioner.SetPosition(ctx, targets)
	})
	select {
	case err = <-result:
		p.setCancel(nil)
		if p.isTerminated() {
			p.concludeTerminated(ctx, moveAborted)
			return nil
		}
		if err != nil {
			return p.fail(ctx, err.Error(), fmt.Errorf("move %v: %w", atom.GetName(), err))
		}
	case <-p.terminated:
		p.concludeTerminated(ctx, moveAborted)
		return nil
	case <-ctx.Done():
		_ = p.Terminate(parentContext(ctx))
		p.concludeTerminated(ctx, moveAborted)
		return nil
	}
	if !p.awaitGate(ctx) {
		p.concludeTerminated(ctx, moveAborted)
		return nil
	}
	p.broadcast(ctx, bean.Update{Status: status.Complete, Percent: bean.Percent(100), Message: bean.Text("Device move(s) completed.")})
	return nil
}

func (p *Move) setCancel(cancel context.CancelFunc) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.cancel = cancel
}

func (p *Move) moving() context.CancelFunc {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.cancel
}

// abort stops an in flight move
func (p *Move) abort(ctx context.Context) error {
	cancel := p.moving()
	if cancel == nil {
		return nil
	}
	err := p.env.Positioner.Abort(ctx)
	cancel()
	return err
}

func (p *Move) pauseDevice(ctx context.Context) error {
	if pausable, ok := p.env.Positioner.(device.Pausable); ok && p.moving() != nil {
		return pausable.Pause(ctx)
	}
	return nil
}

func (p *Move) resumeDevice(ctx context.Context) error {
	if pausable, ok := p.env.Positioner.(device.Pausable); ok {
		return pausable.Resume(ctx)
	}
	return nil
}
