// Package correlation provides the rendez-vous group used as a single use
// completion latch between a parent processor and the children it spooled.
package correlation

import (
	"sync"
	"time"

	"github.com/viant/atomq/internal/clock"
)

// Mode defines when a group is released
type Mode string

const (
	// ModeAll releases once every expected member reported
	ModeAll Mode = "all"
	// ModeFirst releases on the first reported member
	ModeFirst Mode = "first"
	// ModeAnyError releases once every member reported or on the first failure
	ModeAnyError Mode = "anyerror"
)

// Group represents a rendez-vous for a set of asynchronous children.  The
// group tracks how many children were expected and how many have already
// reported; every member is counted at most once and the group is released
// exactly once.
type Group struct {
	ID       string
	Expected int
	Mode     Mode
	DoneAt   *time.Time

	mu        sync.Mutex
	members   map[string]bool
	completed int
	failed    int
	done      chan struct{}
}

// NewGroup creates a group; a group expecting no member is released at once
func NewGroup(id string, expected int, mode Mode) *Group {
	if mode == "" {
		mode = ModeAll
	}
	ret := &Group{ID: id, Expected: expected, Mode: mode, members: make(map[string]bool), done: make(chan struct{})}
	if expected <= 0 {
		ret.release()
	}
	return ret
}

// MarkDone registers the conclusion of a member and returns true when this
// call released the group.  Pass failed=true if the member ended in error.
func (g *Group) MarkDone(memberID string, failed bool) (released bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.members[memberID] {
		return false
	}
	g.members[memberID] = true
	if failed {
		g.failed++
	}
	g.completed++
	if g.DoneAt != nil {
		return false
	}
	switch g.Mode {
	case ModeFirst:
		return g.release()
	case ModeAnyError:
		if failed || g.completed >= g.Expected {
			return g.release()
		}
	default:
		if g.completed >= g.Expected {
			return g.release()
		}
	}
	return false
}

// Release releases the group regardless of reported members
func (g *Group) Release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.release()
}

func (g *Group) release() bool {
	if g.DoneAt != nil {
		return false
	}
	now := clock.Now()
	g.DoneAt = &now
	close(g.done)
	return true
}

// Done returns a channel closed once the group is released
func (g *Group) Done() <-chan struct{} {
	return g.done
}

// IsDone returns whether the group has been released
func (g *Group) IsDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.DoneAt != nil
}

// Failed returns true when at least one member reported failure
func (g *Group) Failed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed > 0
}

// Completed returns number of reported members
func (g *Group) Completed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed
}
