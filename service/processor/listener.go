package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/progress"
	"github.com/viant/atomq/runtime/correlation"
	"github.com/viant/atomq/service/event"
)

const commandBuffer = 16

// Command is a pause, resume or terminate request raised by a child
type Command struct {
	Status    status.Status
	ChildID   string
	ChildName string
}

// QueueListener folds child snapshots into the owning bean: it aggregates
// weighted progress, records child activity, raises commands when a child
// is paused, resumed or terminated independently and releases a latch once
// every child concluded or any child failed.
type QueueListener struct {
	owner    *Base
	tracker  *progress.Tracker
	group    *correlation.Group
	commands chan Command
	logger   *slog.Logger

	mux     sync.Mutex
	failure string
	culprit string
}

// NewQueueListener creates a listener for children of owner; progress starts at the owner's current percent
func NewQueueListener(owner *Base, children []bean.Bean, completePercent float64) *QueueListener {
	aBean := owner.Bean()
	weights := make([]progress.Weighted, 0, len(children))
	for _, child := range children {
		weights = append(weights, progress.Weighted{ID: child.GetID(), Name: child.GetName(), RunTime: child.GetRunTime()})
	}
	return &QueueListener{
		owner:    owner,
		tracker:  progress.New(aBean.GetPercentComplete(), completePercent, weights...),
		group:    correlation.NewGroup(aBean.GetID(), len(children), correlation.ModeAnyError),
		commands: make(chan Command, commandBuffer),
		logger:   owner.logger,
	}
}

// Done is closed once every child concluded or a child failed
func (l *QueueListener) Done() <-chan struct{} {
	return l.group.Done()
}

// Commands returns child raised commands
func (l *QueueListener) Commands() <-chan Command {
	return l.commands
}

// AllComplete returns true when every child completed
func (l *QueueListener) AllComplete() bool {
	return l.tracker.AllComplete()
}

// Progress returns aggregate progress
func (l *QueueListener) Progress() progress.Progress {
	return l.tracker.Snapshot()
}

// Failure returns the first failed child name and its failure description
func (l *QueueListener) Failure() (string, string) {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.culprit, l.failure
}

// Handle processes a snapshot published on the status topic
func (l *QueueListener) Handle(evt *event.Event[bean.Envelope]) {
	if evt == nil || evt.Data.Bean == nil {
		return
	}
	child := evt.Data.Bean
	id := child.GetID()
	if !l.tracker.Has(id) {
		return
	}
	current := child.GetStatus()
	if !current.IsValid() {
		l.logger.Warn("weird status from child", "child", id, "status", current)
		return
	}
	name := child.GetName()
	fromParent := evt.Context != nil && evt.Context.Source == event.SourceParent
	update := bean.Update{}
	if percent, changed := l.tracker.UpdatePercent(id, child.GetPercentComplete()); changed {
		update.Percent = bean.Percent(percent)
	}
	if message := child.GetMessage(); message != "" {
		update.QueueMessage = bean.Text(fmt.Sprintf("'%s': %s", name, message))
	}
	var command status.Status
	concluded, failed := false, false
	if prev, changed := l.tracker.UpdateStatus(id, current); changed {
		ownerStatus := l.owner.Bean().GetStatus()
		switch {
		case current == status.None, current == status.Submitted, current == status.Queued:
		case current.IsRunning(), current == status.RequestResume:
			// a child's first RUNNING never moves the owner
			resumed := prev.IsPaused() || prev.IsResumed()
			if resumed && !fromParent && ownerStatus.IsPaused() {
				update.Status = status.RequestResume
				update.QueueMessage = bean.Text(fmt.Sprintf("Resume requested from '%s'", name))
				command = status.RequestResume
			}
		case current.IsPaused():
			if !fromParent && ownerStatus.IsRunning() {
				update.Status = status.RequestPause
				update.QueueMessage = bean.Text(fmt.Sprintf("Pause requested from '%s'", name))
				command = status.RequestPause
			}
		case current.IsTerminated():
			if !fromParent && !ownerStatus.IsTerminated() && !ownerStatus.IsFinal() {
				update.Status = status.RequestTerminate
				update.QueueMessage = bean.Text(fmt.Sprintf("Termination requested from '%s'", name))
				command = status.RequestTerminate
			}
			concluded = current == status.Terminated
		case current == status.Complete:
			update.QueueMessage = bean.Text(fmt.Sprintf("'%s' completed successfully.", name))
			concluded = true
		case current == status.Failed:
			description := fmt.Sprintf("Failure caused by '%s': %s", name, child.GetMessage())
			update.QueueMessage = bean.Text(description)
			l.recordFailure(name, description)
			concluded, failed = true, true
		default:
			l.logger.Warn("weird status from child", "child", id, "status", current)
		}
	}
	l.apply(update)
	if command != "" {
		select {
		case l.commands <- Command{Status: command, ChildID: id, ChildName: name}:
		default:
			l.logger.Warn("dropped child command", "child", id, "command", command)
		}
	}
	if concluded && l.group.MarkDone(id, failed) && l.tracker.AllComplete() {
		l.apply(bean.Update{QueueMessage: bean.Text("All child processes complete.")})
	}
}

func (l *QueueListener) apply(update bean.Update) {
	if update.IsEmpty() {
		return
	}
	ctx := event.WithSource(context.Background(), event.SourceListener)
	if err := l.owner.Broadcast(ctx, update); err != nil && !errors.Is(err, bean.ErrFinalStatus) {
		l.logger.Warn("failed to update owner from child", "error", err)
	}
}

func (l *QueueListener) recordFailure(name, description string) {
	l.mux.Lock()
	defer l.mux.Unlock()
	if l.culprit == "" {
		l.culprit, l.failure = name, description
	}
}
