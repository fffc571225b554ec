// Package device declares the hardware facing collaborators driven by leaf
// processors.  Implementations live outside the engine; the dummy package
// provides in-process stand-ins used by tests and examples.
package device

import (
	"context"
	"errors"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
)

var (
	// ErrUnknownDevice is returned when a device name is not known to the collaborator
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrAborted is returned by a blocking device call that was aborted
	ErrAborted = errors.New("device: aborted")
)

// Positioner moves devices to target positions
type Positioner interface {
	// SetPosition blocks until every device reached its target
	SetPosition(ctx context.Context, targets map[string]interface{}) error
	// Abort cancels an in flight SetPosition
	Abort(ctx context.Context) error
}

// Pausable is implemented by collaborators able to hold an in flight operation
type Pausable interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Validator is implemented by collaborators able to check device names up front
type Validator interface {
	Validate(names ...string) error
}

// Monitor reads a monitor value
type Monitor interface {
	Read(ctx context.Context, name string) (interface{}, error)
}

// Record describes a recorded monitor value
type Record struct {
	BeanID       string      `json:"beanId"`
	Name         string      `json:"name"`
	Monitor      string      `json:"monitor"`
	Dataset      string      `json:"dataset"`
	Value        interface{} `json:"value"`
	RunDirectory string      `json:"runDirectory,omitempty"`
}

// Recorder persists monitor values
type Recorder interface {
	// Record writes the record and returns its file path
	Record(ctx context.Context, record *Record) (string, error)
}

// ScanService runs sub scans; progress is reported by broadcasting the scan bean
type ScanService interface {
	Submit(ctx context.Context, scan *bean.ScanBean) error
	Command(ctx context.Context, scanID string, command status.Status) error
}

// Broadcaster applies an update to a bean and publishes the resulting state
type Broadcaster func(ctx context.Context, b bean.Bean, u bean.Update) error
