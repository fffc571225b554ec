// Package dummy provides in-process device collaborators.  They simulate
// timing, failures, aborts and pauses and are used by tests and examples.
package dummy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/viant/atomq/service/device"
)

// Positioner simulates motors; each device move takes Delay
type Positioner struct {
	Delay     time.Duration
	mux       sync.Mutex
	positions map[string]interface{}
	known     map[string]bool
	failures  map[string]error
	inflight  map[int]chan struct{}
	seq       int
	aborts    int
	moves     int
	resume    chan struct{}
}

// NewPositioner creates a positioner for the supplied devices; no devices means any name is accepted
func NewPositioner(delay time.Duration, devices ...string) *Positioner {
	ret := &Positioner{Delay: delay, positions: map[string]interface{}{}, failures: map[string]error{}, inflight: map[int]chan struct{}{}}
	if len(devices) > 0 {
		ret.known = map[string]bool{}
		for _, name := range devices {
			ret.known[name] = true
		}
	}
	return ret
}

// Fail makes every subsequent move of the device fail with err
func (p *Positioner) Fail(name string, err error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.failures[name] = err
}

// Position returns last reached device position
func (p *Positioner) Position(name string) (interface{}, bool) {
	p.mux.Lock()
	defer p.mux.Unlock()
	value, ok := p.positions[name]
	return value, ok
}

// Aborts returns number of Abort calls
func (p *Positioner) Aborts() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.aborts
}

// Moves returns number of completed device moves
func (p *Positioner) Moves() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.moves
}

// Validate checks device names against the known set
func (p *Positioner) Validate(names ...string) error {
	if p.known == nil {
		return nil
	}
	for _, name := range names {
		if !p.known[name] {
			return fmt.Errorf("%w: %v", device.ErrUnknownDevice, name)
		}
	}
	return nil
}

// SetPosition moves devices in name order
func (p *Positioner) SetPosition(ctx context.Context, targets map[string]interface{}) error {
	if err := p.Validate(deviceNames(targets)...); err != nil {
		return err
	}
	p.mux.Lock()
	p.seq++
	id := p.seq
	abort := make(chan struct{})
	p.inflight[id] = abort
	p.mux.Unlock()
	defer func() {
		p.mux.Lock()
		delete(p.inflight, id)
		p.mux.Unlock()
	}()
	for _, name := range deviceNames(targets) {
		p.mux.Lock()
		failure := p.failures[name]
		p.mux.Unlock()
		if failure != nil {
			return fmt.Errorf("failed to move %v: %w", name, failure)
		}
		if err := p.wait(ctx, abort); err != nil {
			return err
		}
		p.mux.Lock()
		p.positions[name] = targets[name]
		p.moves++
		p.mux.Unlock()
	}
	return nil
}

func (p *Positioner) wait(ctx context.Context, abort chan struct{}) error {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-abort:
			return device.ErrAborted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		p.mux.Lock()
		resume := p.resume
		p.mux.Unlock()
		if resume == nil {
			return nil
		}
		select {
		case <-resume:
		case <-abort:
			return device.ErrAborted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Abort cancels every in flight move
func (p *Positioner) Abort(ctx context.Context) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.aborts++
	for id, abort := range p.inflight {
		close(abort)
		delete(p.inflight, id)
	}
	return nil
}

// Pause holds moves before the next device
func (p *Positioner) Pause(ctx context.Context) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.resume == nil {
		p.resume = make(chan struct{})
	}
	return nil
}

// Resume releases held moves
func (p *Positioner) Resume(ctx context.Context) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.resume != nil {
		close(p.resume)
		p.resume = nil
	}
	return nil
}

func deviceNames(targets map[string]interface{}) []string {
	ret := make([]string, 0, len(targets))
	for name := range targets {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

var (
	_ device.Positioner = (*Positioner)(nil)
	_ device.Pausable   = (*Positioner)(nil)
	_ device.Validator  = (*Positioner)(nil)
)
