package dummy

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/atomq/service/device"
)

// Monitor returns preset monitor values
type Monitor struct {
	mux    sync.RWMutex
	values map[string]interface{}
}

// NewMonitor creates a monitor with initial values
func NewMonitor(values map[string]interface{}) *Monitor {
	ret := &Monitor{values: map[string]interface{}{}}
	for k, v := range values {
		ret.values[k] = v
	}
	return ret
}

// Set sets a monitor value
func (m *Monitor) Set(name string, value interface{}) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.values[name] = value
}

func (m *Monitor) Read(ctx context.Context, name string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	value, ok := m.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", device.ErrUnknownDevice, name)
	}
	return value, nil
}

// Validate checks monitor names
func (m *Monitor) Validate(names ...string) error {
	m.mux.RLock()
	defer m.mux.RUnlock()
	for _, name := range names {
		if _, ok := m.values[name]; !ok {
			return fmt.Errorf("%w: %v", device.ErrUnknownDevice, name)
		}
	}
	return nil
}

var (
	_ device.Monitor   = (*Monitor)(nil)
	_ device.Validator = (*Monitor)(nil)
)
