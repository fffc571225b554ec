package event

import (
	"time"

	"github.com/viant/atomq/internal/clock"
)

// Source values describe who originated a bean change
const (
	// SourceProcessor marks changes made by the bean's own processor
	SourceProcessor = "processor"
	// SourceParent marks changes commanded by the owning parent processor
	SourceParent = "parent"
	// SourceListener marks changes folded in from child queue events
	SourceListener = "listener"
	// SourceOperator marks changes requested through the runtime API
	SourceOperator = "operator"
)

// Context describes the origin of an event
type Context struct {
	QueueID   string `json:"queueID,omitempty"`
	BeanID    string `json:"beanID"`
	Kind      string `json:"kind,omitempty"`
	EventType string `json:"eventType"`
	Source    string `json:"source,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}
