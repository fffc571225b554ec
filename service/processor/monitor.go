package processor

import (
	"context"
	"fmt"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/device"
	"github.com/viant/atomq/tracing"
)

const (
	monitorAborted = "Monitor read aborted before completion (requested)."
	datasetPrefix  = "/entry1/instrument/"
)

// Monitor reads a monitor value and records it
type Monitor struct {
	*Base
}

// NewMonitor creates a monitor processor
func NewMonitor(env *Env, queueID string) *Monitor {
	return &Monitor{Base: newBase(env, queueID)}
}

func (p *Monitor) BeanKind() bean.Kind { return bean.KindMonitorAtom }

func (p *Monitor) Execute(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "processor.Monitor", tracing.KindInternal)
	defer func() { span.End(err) }()
	if err = p.start(); err != nil {
		return err
	}
	atom, ok := p.Bean().(*bean.MonitorAtom)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnsupportedBean, p.Bean().Kind())
	}
	span.Bean(atom)
	if !p.awaitGate(ctx) {
		p.concludeTerminated(ctx, monitorAborted)
		return nil
	}
	name := atom.MonitorName()
	p.broadcast(ctx, bean.Update{Status: status.Running, Percent: bean.Percent(0), Message: bean.Text("Reading value of: " + name)})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	result := runDevice(runCtx, func(ctx context.Context) error {
		return p.record(ctx, atom)
	})
	select {
	case err = <-result:
		if p.isTerminated() {
			p.concludeTerminated(ctx, monitorAborted)
			return nil
		}
		if err != nil {
			return p.fail(ctx, err.Error(), fmt.Errorf("monitor %v: %w", atom.GetName(), err))
		}
	case <-p.terminated:
		cancel()
		p.concludeTerminated(ctx, monitorAborted)
		return nil
	case <-ctx.Done():
		_ = p.Terminate(parentContext(ctx))
		p.concludeTerminated(ctx, monitorAborted)
		return nil
	}
	if !p.awaitGate(ctx) {
		p.concludeTerminated(ctx, monitorAborted)
		return nil
	}
	p.broadcast(ctx, bean.Update{Status: status.Complete, Percent: bean.Percent(100), Message: bean.Text("Monitor " + name + " recorded.")})
	return nil
}

func (p *Monitor) record(ctx context.Context, atom *bean.MonitorAtom) error {
	name := atom.MonitorName()
	value, err := p.env.Monitor.Read(ctx, name)
	if err != nil {
		return err
	}
	p.broadcast(ctx, bean.Update{Percent: bean.Percent(40), Message: bean.Text(fmt.Sprintf("Retrieved value of %v.", name))})
	if p.env.Recorder == nil {
		return nil
	}
	runDirectory := atom.GetRunDirectory()
	if runDirectory == "" {
		runDirectory = p.env.RunDirectory
	}
	dataset := datasetPrefix + name
	filePath, err := p.env.Recorder.Record(ctx, &device.Record{
		BeanID:       atom.GetID(),
		Name:         atom.GetName(),
		Monitor:      name,
		Dataset:      dataset,
		Value:        value,
		RunDirectory: runDirectory,
	})
	if err != nil {
		return err
	}
	atom.SetOutput(filePath, dataset)
	p.broadcast(ctx, bean.Update{Percent: bean.Percent(80), Message: bean.Text("Recorded value to " + filePath)})
	return nil
}
