package progress

import (
	"sync"

	"github.com/viant/atomq/model/status"
)

// DefaultCompletePercent is the highest percent reported before the owner performs its own completion checks
const DefaultCompletePercent = 99.5

// Weighted describes a tracked child
type Weighted struct {
	ID      string
	Name    string
	RunTime int64
}

// Child is the tracked state of a single child
type Child struct {
	ID      string
	Name    string
	Weight  float64
	Percent float64
	Status  status.Status
}

// Delta represents an incremental counter change
type Delta struct {
	Total      int
	Completed  int
	Failed     int
	Terminated int
	Running    int
	Pending    int
}

// Progress is a point in time copy of the batch counters and parent percent
type Progress struct {
	Percent    float64
	Total      int
	Completed  int
	Failed     int
	Terminated int
	Running    int
	Pending    int
}

// Concluded returns true once every child reached a final status
func (p Progress) Concluded() bool {
	return p.Completed+p.Failed+p.Terminated >= p.Total
}

// Tracker aggregates weighted child progress, it is safe for concurrent use
type Tracker struct {
	initPercent     float64
	completePercent float64
	children        map[string]*Child
	order           []string
	counters        Progress
	mux             sync.Mutex
}

// New creates a tracker; weights are run time fractions or equal shares when no run time is known
func New(initPercent, completePercent float64, children ...Weighted) *Tracker {
	if completePercent <= 0 || completePercent > 100 {
		completePercent = DefaultCompletePercent
	}
	ret := &Tracker{
		initPercent:     initPercent,
		completePercent: completePercent,
		children:        make(map[string]*Child, len(children)),
	}
	var totalRunTime int64
	for _, child := range children {
		if child.RunTime > 0 {
			totalRunTime += child.RunTime
		}
	}
	for _, child := range children {
		if _, ok := ret.children[child.ID]; ok {
			continue
		}
		weight := 1 / float64(len(children))
		if totalRunTime > 0 {
			weight = 0
			if child.RunTime > 0 {
				weight = float64(child.RunTime) / float64(totalRunTime)
			}
		}
		ret.children[child.ID] = &Child{ID: child.ID, Name: child.Name, Weight: weight, Status: status.None}
		ret.order = append(ret.order, child.ID)
	}
	ret.counters.Total = len(ret.order)
	ret.counters.Pending = len(ret.order)
	ret.counters.Percent = initPercent
	return ret
}

// Has returns true if the child is tracked
func (t *Tracker) Has(id string) bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	_, ok := t.children[id]
	return ok
}

// Child returns a copy of the tracked child
func (t *Tracker) Child(id string) (Child, bool) {
	t.mux.Lock()
	defer t.mux.Unlock()
	child, ok := t.children[id]
	if !ok {
		return Child{}, false
	}
	return *child, true
}

// Children returns copies of tracked children in registration order
func (t *Tracker) Children() []Child {
	t.mux.Lock()
	defer t.mux.Unlock()
	ret := make([]Child, 0, len(t.order))
	for _, id := range t.order {
		ret = append(ret, *t.children[id])
	}
	return ret
}

// UpdatePercent records child percent; it returns the parent percent and whether the child percent increased
func (t *Tracker) UpdatePercent(id string, percent float64) (float64, bool) {
	t.mux.Lock()
	defer t.mux.Unlock()
	child, ok := t.children[id]
	if !ok || percent <= child.Percent {
		return t.counters.Percent, false
	}
	if percent > 100 {
		percent = 100
	}
	child.Percent = percent
	t.counters.Percent = t.percent()
	return t.counters.Percent, true
}

// UpdateStatus records child status; it returns the previously tracked status and whether it changed
func (t *Tracker) UpdateStatus(id string, next status.Status) (status.Status, bool) {
	t.mux.Lock()
	defer t.mux.Unlock()
	child, ok := t.children[id]
	if !ok || child.Status == next || child.Status.IsFinal() {
		var prev status.Status
		if ok {
			prev = child.Status
		}
		return prev, false
	}
	prev := child.Status
	t.apply(counterDelta(prev, -1))
	t.apply(counterDelta(next, 1))
	child.Status = next
	return prev, true
}

// Percent returns the current parent percent
func (t *Tracker) Percent() float64 {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.counters.Percent
}

// Snapshot returns a copy of counters
func (t *Tracker) Snapshot() Progress {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.counters
}

// AllComplete returns true when every child is COMPLETE
func (t *Tracker) AllComplete() bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.counters.Completed == t.counters.Total
}

// percent computes init + (100-init) * sum(weight * percent/100), capped at completePercent
func (t *Tracker) percent() float64 {
	var done float64
	for _, child := range t.children {
		done += child.Weight * child.Percent / 100
	}
	ret := t.initPercent + (100-t.initPercent)*done
	if ret > t.completePercent {
		ret = t.completePercent
	}
	if ret < t.initPercent {
		ret = t.initPercent
	}
	return ret
}

func (t *Tracker) apply(d Delta) {
	t.counters.Completed += d.Completed
	t.counters.Failed += d.Failed
	t.counters.Terminated += d.Terminated
	t.counters.Running += d.Running
	t.counters.Pending += d.Pending
}

func counterDelta(s status.Status, sign int) Delta {
	switch {
	case s == status.Complete:
		return Delta{Completed: sign}
	case s == status.Failed:
		return Delta{Failed: sign}
	case s == status.Terminated:
		return Delta{Terminated: sign}
	case s == status.None || s == status.Submitted || s == status.Queued || s == "":
		return Delta{Pending: sign}
	default:
		return Delta{Running: sign}
	}
}
