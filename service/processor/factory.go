package processor

import (
	"errors"
	"fmt"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/device"
)

// Factory validates beans and creates their processors
type Factory struct {
	env *Env
}

// NewFactory creates a factory
func NewFactory(options ...Option) *Factory {
	ret := &Factory{env: &Env{}}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// SetRegistry sets the queue registry; the registry usually needs the factory first
func (f *Factory) SetRegistry(registry QueueRegistry) {
	f.env.Registry = registry
}

// Env returns processor collaborators
func (f *Factory) Env() *Env {
	return f.env
}

// Create validates the bean and returns a bound processor
func (f *Factory) Create(queueID string, aBean bean.Bean) (Processor, error) {
	if aBean == nil {
		return nil, bean.ErrNilBean
	}
	if err := f.Validate(aBean); err != nil {
		return nil, err
	}
	var ret Processor
	switch aBean.Kind() {
	case bean.KindMoveAtom:
		ret = NewMove(f.env, queueID)
	case bean.KindMonitorAtom:
		ret = NewMonitor(f.env, queueID)
	case bean.KindScanAtom:
		ret = NewScan(f.env, queueID)
	case bean.KindSubTaskAtom:
		ret = NewSubTaskAtom(f.env, queueID)
	case bean.KindTaskBean:
		ret = NewTaskBean(f.env, queueID)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBean, aBean.Kind())
	}
	if err := ret.Bind(aBean); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate checks the bean payload, its devices and, for composites, every child
func (f *Factory) Validate(aBean bean.Bean) error {
	if aBean == nil {
		return bean.ErrNilBean
	}
	if err := aBean.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if f.env.Topic == nil {
		return fmt.Errorf("%w: status topic was not configured", ErrValidation)
	}
	switch actual := aBean.(type) {
	case *bean.MoveAtom:
		if f.env.Positioner == nil {
			return fmt.Errorf("%w: positioner was not configured", ErrValidation)
		}
		return f.validateDevices(f.env.Positioner, actual.Devices()...)
	case *bean.MonitorAtom:
		if f.env.Monitor == nil {
			return fmt.Errorf("%w: monitor was not configured", ErrValidation)
		}
		return f.validateDevices(f.env.Monitor, actual.MonitorName())
	case *bean.ScanAtom:
		if f.env.ScanService == nil {
			return fmt.Errorf("%w: scan service was not configured", ErrValidation)
		}
		return nil
	case bean.HasChildQueue:
		if f.env.Registry == nil {
			return fmt.Errorf("%w: queue registry was not configured", ErrValidation)
		}
		var errs []error
		for _, child := range actual.Children() {
			if err := f.Validate(child); err != nil {
				errs = append(errs, fmt.Errorf("%v: %w", child.GetName(), err))
			}
		}
		return errors.Join(errs...)
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedBean, aBean.Kind())
}

func (f *Factory) validateDevices(collaborator interface{}, names ...string) error {
	validator, ok := collaborator.(device.Validator)
	if !ok {
		return nil
	}
	if err := validator.Validate(names...); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
