package processor

import (
	"context"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/event"
)

// EventTypeStatus is the event type of bean snapshots
const EventTypeStatus = "status"

// Publish applies update to b and publishes the resulting snapshot.  Callers
// changing the same bean concurrently must serialise calls to keep snapshot order.
func Publish(ctx context.Context, topic StatusTopic, queueID string, b bean.Bean, update bean.Update) error {
	snapshot, err := bean.Mutate(b, update)
	if err != nil {
		return err
	}
	if topic == nil {
		return nil
	}
	evt := event.NewEvent(&event.Context{
		QueueID:   queueID,
		BeanID:    snapshot.GetID(),
		Kind:      string(snapshot.Kind()),
		EventType: EventTypeStatus,
		Source:    event.SourceFrom(ctx),
	}, bean.Envelope{Bean: snapshot})
	return topic.Publish(context.WithoutCancel(ctx), evt)
}
