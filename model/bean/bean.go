// Package bean defines the queueable work items processed by the engine. Each
// bean kind is a concrete record embedding Queueable and exposing a small set
// of capabilities (Atom, QueueBean, HasChildQueue); the processing layer
// dispatches on Kind.
package bean

import (
	"errors"

	"github.com/viant/atomq/model/status"
)

// Kind identifies a concrete bean type
type Kind string

const (
	KindTaskBean    Kind = "TaskBean"
	KindSubTaskAtom Kind = "SubTaskAtom"
	KindMoveAtom    Kind = "MoveAtom"
	KindMonitorAtom Kind = "MonitorAtom"
	KindScanAtom    Kind = "ScanAtom"
	KindScanBean    Kind = "ScanBean"
)

var (
	// ErrFinalStatus is returned when a bean that already concluded is mutated
	ErrFinalStatus = errors.New("bean: status is final")

	// ErrInvalidTransition is returned for a status change the lifecycle does not permit
	ErrInvalidTransition = errors.New("bean: invalid status transition")

	// ErrUnknownKind is returned when decoding or dispatching an unsupported kind
	ErrUnknownKind = errors.New("bean: unknown kind")

	// ErrNilBean is returned when a nil bean is supplied
	ErrNilBean = errors.New("bean: nil bean")

	// ErrInvalidBean is returned by Validate
	ErrInvalidBean = errors.New("bean: invalid bean")
)

// Identifiable exposes bean identity
type Identifiable interface {
	GetID() string
	GetName() string
}

// Progressable exposes bean lifecycle and progress
type Progressable interface {
	GetStatus() status.Status
	GetPreviousStatus() status.Status
	GetPercentComplete() float64
	GetMessage() string
	GetRunTime() int64
}

// Bean represents any queueable work item
type Bean interface {
	Identifiable
	Progressable
	// Base returns the embedded Queueable
	Base() *Queueable
	// Kind returns the concrete bean kind
	Kind() Kind
	// Clone returns a deep, independently lockable copy
	Clone() Bean
	// Validate checks the type specific payload
	Validate() error
	clone() Bean
}

// Atom is a bean that may only be queued inside another bean
type Atom interface {
	Bean
	isAtom()
}

// QueueBean is a bean that may only be submitted to the job queue
type QueueBean interface {
	Bean
	isQueueBean()
}

// HasChildQueue is a composite bean owning a queue of atoms
type HasChildQueue interface {
	Bean
	// GetQueueMessage returns child queue activity text
	GetQueueMessage() string
	// Children returns the queued atoms in execution order
	Children() []Atom
	setQueueMessage(message string)
}

// Update describes a single atomic bean mutation; nil fields are left unchanged
type Update struct {
	Status       status.Status
	Percent      *float64
	Message      *string
	QueueMessage *string
}

// IsEmpty returns true if update carries no change
func (u Update) IsEmpty() bool {
	return u.Status == "" && u.Percent == nil && u.Message == nil && u.QueueMessage == nil
}

// Percent returns a percent update value
func Percent(v float64) *float64 {
	return &v
}

// Text returns a message update value
func Text(v string) *string {
	return &v
}

// Apply mutates bean under its lock
func Apply(b Bean, u Update) error {
	if b == nil {
		return ErrNilBean
	}
	base := b.Base()
	base.mux.Lock()
	defer base.mux.Unlock()
	return apply(b, u)
}

func apply(b Bean, u Update) error {
	base := b.Base()
	if u.IsEmpty() {
		return nil
	}
	if base.Status.IsFinal() {
		return ErrFinalStatus
	}
	if u.Status != "" {
		if err := base.setStatus(u.Status); err != nil {
			return err
		}
	}
	if u.Percent != nil {
		base.setPercentComplete(*u.Percent)
	}
	if base.Status == status.Complete {
		base.PercentComplete = 100
	}
	if u.Message != nil {
		base.Message = *u.Message
	}
	if u.QueueMessage != nil {
		if composite, ok := b.(HasChildQueue); ok {
			composite.setQueueMessage(*u.QueueMessage)
		}
	}
	return nil
}

// Mutate applies the update and returns a clone taken under the same lock
func Mutate(b Bean, u Update) (Bean, error) {
	if b == nil {
		return nil, ErrNilBean
	}
	base := b.Base()
	base.mux.Lock()
	defer base.mux.Unlock()
	if err := apply(b, u); err != nil {
		return nil, err
	}
	return b.clone(), nil
}
