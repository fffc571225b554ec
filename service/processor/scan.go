package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/tracing"
)

const (
	scanAborted = "Scan aborted before completion (requested)."
	// scanConfigured is the percent reached once the scan is configured
	scanConfigured = 5.0
)

// Scan submits a ScanAtom to the scan service and follows its scan bean
type Scan struct {
	*Base
	mux  sync.Mutex
	scan *bean.ScanBean
}

// NewScan creates a scan processor
func NewScan(env *Env, queueID string) *Scan {
	ret := &Scan{Base: newBase(env, queueID)}
	ret.onTerminate = ret.command(status.RequestTerminate)
	ret.onPause = ret.command(status.RequestPause)
	ret.onResume = ret.command(status.RequestResume)
	return ret
}

func (p *Scan) BeanKind() bean.Kind { return bean.KindScanAtom }

// ScanBean returns the submitted scan bean
func (p *Scan) ScanBean() *bean.ScanBean {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.scan
}

func (p *Scan) Execute(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "processor.Scan", tracing.KindInternal)
	defer func() { span.End(err) }()
	if err = p.start(); err != nil {
		return err
	}
	atom, ok := p.Bean().(*bean.ScanAtom)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnsupportedBean, p.Bean().Kind())
	}
	span.Bean(atom)
	if !p.awaitGate(ctx) {
		p.concludeTerminated(ctx, scanAborted)
		return nil
	}
	p.broadcast(ctx, bean.Update{Status: status.Running, Percent: bean.Percent(1), Message: bean.Text("Configuring scan.")})
	scan := bean.NewScanBean(atom)
	if err = scan.Validate(); err != nil {
		return p.fail(ctx, err.Error(), err)
	}
	p.broadcast(ctx, bean.Update{Percent: bean.Percent(3), Message: bean.Text(fmt.Sprintf("Created scan of %d point(s).", scan.Size))})
	p.broadcast(ctx, bean.Update{Percent: bean.Percent(scanConfigured), Message: bean.Text("Submitting scan.")})

	listener := NewQueueListener(p.Base, []bean.Bean{scan}, p.env.completePercent())
	subscription, err := p.env.Topic.Subscribe(listener.Handle)
	if err != nil {
		return p.fail(ctx, err.Error(), err)
	}
	defer p.env.Topic.Unsubscribe(subscription)
	p.mux.Lock()
	p.scan = scan
	p.mux.Unlock()
	if err = p.env.ScanService.Submit(ctx, scan); err != nil {
		return p.fail(ctx, err.Error(), fmt.Errorf("scan %v: %w", atom.GetName(), err))
	}
	switch result := p.supervise(ctx, listener); {
	case result == outcomeTerminated:
		p.concludeTerminated(ctx, scanAborted)
		return nil
	case listener.AllComplete():
		if !p.awaitGate(ctx) {
			p.concludeTerminated(ctx, scanAborted)
			return nil
		}
		p.broadcast(ctx, bean.Update{Status: status.Complete, Percent: bean.Percent(100), Message: bean.Text("Scan completed.")})
		return nil
	case listener.Progress().Failed == 0:
		p.concludeTerminated(ctx, scanAborted)
		return nil
	}
	_, description := listener.Failure()
	return p.fail(ctx, description, fmt.Errorf("%w: %v", ErrChildFailed, description))
}

// command forwards a lifecycle request to an active scan
func (p *Scan) command(command status.Status) hook {
	return func(ctx context.Context) error {
		scan := p.ScanBean()
		if scan == nil {
			return nil
		}
		if current := scan.GetStatus(); current.IsFinal() || current.IsTerminated() {
			return nil
		}
		return p.env.ScanService.Command(parentContext(ctx), scan.GetID(), command)
	}
}
