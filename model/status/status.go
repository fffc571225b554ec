// Package status defines the lifecycle state shared by every queued bean.
package status

import "fmt"

// Status represents the current lifecycle state of a queued bean
type Status string

const (
	None             Status = "NONE"
	Submitted        Status = "SUBMITTED"
	Queued           Status = "QUEUED"
	Running          Status = "RUNNING"
	RequestPause     Status = "REQUEST_PAUSE"
	Paused           Status = "PAUSED"
	RequestResume    Status = "REQUEST_RESUME"
	Resumed          Status = "RESUMED"
	RequestTerminate Status = "REQUEST_TERMINATE"
	Terminated       Status = "TERMINATED"
	Complete         Status = "COMPLETE"
	Failed           Status = "FAILED"
)

var known = map[Status]bool{
	None: true, Submitted: true, Queued: true, Running: true,
	RequestPause: true, Paused: true, RequestResume: true, Resumed: true,
	RequestTerminate: true, Terminated: true, Complete: true, Failed: true,
}

// IsValid returns true for every declared status value
func (s Status) IsValid() bool {
	return known[s]
}

// IsRunning returns true when the bean is actively executing
func (s Status) IsRunning() bool {
	return s == Running || s == Resumed
}

// IsPaused returns true when the bean is paused or a pause was requested
func (s Status) IsPaused() bool {
	return s == Paused || s == RequestPause
}

// IsResumed returns true when the bean was resumed or a resume was requested
func (s Status) IsResumed() bool {
	return s == Resumed || s == RequestResume
}

// IsRequest returns true for the REQUEST_* variants
func (s Status) IsRequest() bool {
	return s == RequestPause || s == RequestResume || s == RequestTerminate
}

// IsTerminated returns true when the bean was terminated or termination was requested
func (s Status) IsTerminated() bool {
	return s == Terminated || s == RequestTerminate
}

// IsFinal returns true when no further transition is permitted
func (s Status) IsFinal() bool {
	return s == Complete || s == Failed || s == Terminated
}

// IsActive returns true for a bean that was handed to the engine and has not concluded yet
func (s Status) IsActive() bool {
	return s != None && s != "" && !s.IsFinal()
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsValid() || s.IsFinal() {
		return false
	}
	switch next {
	case None:
		return s == None || s == ""
	case Submitted, Queued:
		return s == None || s == "" || s == Submitted || s == Queued
	}
	return true
}

// Parse converts text into a Status
func Parse(text string) (Status, error) {
	s := Status(text)
	if !s.IsValid() {
		return None, fmt.Errorf("unknown status: %q", text)
	}
	return s, nil
}

func (s Status) String() string {
	return string(s)
}
