package bean

import (
	"fmt"
	"sync"
	"time"

	"github.com/viant/atomq/internal/clock"
	"github.com/viant/atomq/internal/idgen"
	"github.com/viant/atomq/model/status"
)

// Queueable holds the state shared by every bean kind. Status and
// PreviousStatus are only changed through SetStatus/Apply so that
// PreviousStatus always holds the value Status had one mutation ago.
type Queueable struct {
	ID              string        `json:"uniqueId"`
	Name            string        `json:"name,omitempty"`
	Status          status.Status `json:"status"`
	PreviousStatus  status.Status `json:"previousStatus"`
	Message         string        `json:"message,omitempty"`
	PercentComplete float64       `json:"percentComplete"`
	RunTime         int64         `json:"runTime"`
	Beamline        string        `json:"beamline,omitempty"`
	SubmissionTime  time.Time     `json:"submissionTime"`
	UserName        string        `json:"userName,omitempty"`
	HostName        string        `json:"hostName,omitempty"`
	mux             sync.RWMutex
}

func newQueueable(name string, runTime int64) Queueable {
	return Queueable{
		ID:             idgen.New(),
		Name:           name,
		Status:         status.None,
		PreviousStatus: status.None,
		RunTime:        runTime,
	}
}

// Base returns itself, so every embedding kind satisfies Bean.Base
func (q *Queueable) Base() *Queueable {
	return q
}

func (q *Queueable) GetID() string {
	return q.ID
}

func (q *Queueable) GetName() string {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.Name
}

func (q *Queueable) GetStatus() status.Status {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.Status
}

func (q *Queueable) GetPreviousStatus() status.Status {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.PreviousStatus
}

func (q *Queueable) GetPercentComplete() float64 {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.PercentComplete
}

func (q *Queueable) GetMessage() string {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.Message
}

func (q *Queueable) GetRunTime() int64 {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.RunTime
}

// SetStatus changes status and records the previous one
func (q *Queueable) SetStatus(s status.Status) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.Status.IsFinal() {
		return ErrFinalStatus
	}
	return q.setStatus(s)
}

// SetPercentComplete updates percent; values are clamped to [0,100] and never decrease while not final
func (q *Queueable) SetPercentComplete(percent float64) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.Status.IsFinal() {
		return ErrFinalStatus
	}
	q.setPercentComplete(percent)
	return nil
}

// SetMessage updates message
func (q *Queueable) SetMessage(message string) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.Status.IsFinal() {
		return ErrFinalStatus
	}
	q.Message = message
	return nil
}

// MarkSubmitted stamps submission time and moves the bean to SUBMITTED
func (q *Queueable) MarkSubmitted() error {
	q.mux.Lock()
	defer q.mux.Unlock()
	if err := q.setStatus(status.Submitted); err != nil {
		return err
	}
	q.SubmissionTime = clock.Now()
	return nil
}

// Inherit copies beamline, host and user from the owning bean
func (q *Queueable) Inherit(owner *Queueable) {
	owner.mux.RLock()
	beamline, hostName, userName := owner.Beamline, owner.HostName, owner.UserName
	owner.mux.RUnlock()
	q.mux.Lock()
	defer q.mux.Unlock()
	if beamline != "" && q.Beamline != beamline {
		q.Beamline = beamline
	}
	if hostName != "" && q.HostName != hostName {
		q.HostName = hostName
	}
	if userName != "" && q.UserName != userName {
		q.UserName = userName
	}
}

func (q *Queueable) setStatus(s status.Status) error {
	if s == q.Status {
		return nil
	}
	if !q.Status.CanTransitionTo(s) {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, q.Status, s)
	}
	q.PreviousStatus = q.Status
	q.Status = s
	return nil
}

func (q *Queueable) setPercentComplete(percent float64) {
	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	if percent < q.PercentComplete {
		return
	}
	q.PercentComplete = percent
}

func (q *Queueable) validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidBean)
	}
	return nil
}

// copy returns field copy without the lock, caller holds the read lock
func (q *Queueable) copy() Queueable {
	return Queueable{
		ID:              q.ID,
		Name:            q.Name,
		Status:          q.Status,
		PreviousStatus:  q.PreviousStatus,
		Message:         q.Message,
		PercentComplete: q.PercentComplete,
		RunTime:         q.RunTime,
		Beamline:        q.Beamline,
		SubmissionTime:  q.SubmissionTime,
		UserName:        q.UserName,
		HostName:        q.HostName,
	}
}
