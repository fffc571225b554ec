package processor

import (
	"context"
	"fmt"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/tracing"
)

type labels struct {
	subject   string
	aborted   string
	completed string
}

var (
	subTaskLabels = labels{subject: "Active-queue", aborted: "Active-queue aborted before completion (requested).", completed: "Active-queue completed."}
	taskLabels    = labels{subject: "Job", aborted: "Job aborted before completion (requested).", completed: "Job completed."}
)

// Composite processes beans owning a child queue (SubTaskAtom, TaskBean)
type Composite struct {
	*Base
	kind   bean.Kind
	labels labels
	queue  *AtomQueueProcessor
}

// NewSubTaskAtom creates a processor for SubTaskAtom beans
func NewSubTaskAtom(env *Env, queueID string) *Composite {
	return newComposite(env, queueID, bean.KindSubTaskAtom, subTaskLabels)
}

// NewTaskBean creates a processor for TaskBean beans
func NewTaskBean(env *Env, queueID string) *Composite {
	return newComposite(env, queueID, bean.KindTaskBean, taskLabels)
}

func newComposite(env *Env, queueID string, kind bean.Kind, labels labels) *Composite {
	ret := &Composite{Base: newBase(env, queueID), kind: kind, labels: labels}
	ret.queue = newAtomQueueProcessor(ret.Base)
	ret.onPause = ret.queue.pauseQueue
	ret.onResume = ret.queue.resumeQueue
	return ret
}

func (p *Composite) BeanKind() bean.Kind { return p.kind }

// ActiveQueueID returns the child queue ID while children run
func (p *Composite) ActiveQueueID() string {
	return p.queue.QueueID()
}

// Execute runs children and concludes from their outcome
func (p *Composite) Execute(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "processor."+string(p.kind), tracing.KindInternal)
	defer func() { span.End(err) }()
	if err = p.start(); err != nil {
		return err
	}
	aBean := p.Bean()
	if aBean.Kind() != p.kind {
		return fmt.Errorf("%w: %v", ErrUnsupportedBean, aBean.Kind())
	}
	span.Bean(aBean)
	if !p.awaitGate(ctx) {
		p.concludeTerminated(ctx, p.labels.aborted)
		return nil
	}
	listener, result, err := p.queue.Run(ctx)
	if err != nil {
		return p.fail(ctx, err.Error(), err)
	}
	progress := listener.Progress()
	switch {
	case result == outcomeTerminated:
		p.concludeTerminated(ctx, p.labels.aborted)
		return nil
	case listener.AllComplete():
		if !p.awaitGate(ctx) {
			p.concludeTerminated(ctx, p.labels.aborted)
			return nil
		}
		p.broadcast(ctx, bean.Update{Status: status.Complete, Percent: bean.Percent(100), Message: bean.Text(p.labels.completed)})
		return nil
	case progress.Failed == 0 && progress.Terminated > 0:
		p.concludeTerminated(ctx, p.labels.aborted)
		return nil
	}
	culprit, description := listener.Failure()
	message := fmt.Sprintf("%s failed (caused by '%s')", p.labels.subject, culprit)
	p.broadcast(ctx, bean.Update{Status: status.Failed, Message: bean.Text(message), QueueMessage: bean.Text(description)})
	return fmt.Errorf("%w: %v", ErrChildFailed, description)
}
