package processor

import "sync"

var opened = func() chan struct{} {
	ret := make(chan struct{})
	close(ret)
	return ret
}()

// gate holds execution while paused
type gate struct {
	mux  sync.Mutex
	hold chan struct{}
}

func (g *gate) pause() bool {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.hold != nil {
		return false
	}
	g.hold = make(chan struct{})
	return true
}

func (g *gate) resume() bool {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.hold == nil {
		return false
	}
	close(g.hold)
	g.hold = nil
	return true
}

func (g *gate) paused() bool {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.hold != nil
}

// wait returns a channel closed once the gate is open
func (g *gate) wait() <-chan struct{} {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.hold == nil {
		return opened
	}
	return g.hold
}
