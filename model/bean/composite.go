package bean

import (
	"fmt"

	"github.com/viant/atomq/model/queue"
)

// TaskBean is a top level experiment submitted to the job queue; it owns a queue of sub tasks
type TaskBean struct {
	Queueable
	QueueMessage string                          `json:"queueMessage,omitempty"`
	AtomQueue    *queue.AtomQueue[*SubTaskAtom] `json:"atomQueue"`
}

// NewTaskBean creates a task bean with the supplied sub tasks
func NewTaskBean(name string, subTasks ...*SubTaskAtom) (*TaskBean, error) {
	ret := &TaskBean{Queueable: newQueueable(name, 0), AtomQueue: &queue.AtomQueue[*SubTaskAtom]{}}
	if err := ret.AddSubTask(subTasks...); err != nil {
		return nil, err
	}
	return ret, nil
}

func (t *TaskBean) Kind() Kind { return KindTaskBean }

func (t *TaskBean) isQueueBean() {}

// AddSubTask appends sub tasks; run time follows the queue run time
func (t *TaskBean) AddSubTask(subTasks ...*SubTaskAtom) error {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.AtomQueue == nil {
		t.AtomQueue = &queue.AtomQueue[*SubTaskAtom]{}
	}
	if err := t.AtomQueue.AddAll(subTasks...); err != nil {
		return err
	}
	t.RunTime = t.AtomQueue.RunTime()
	return nil
}

func (t *TaskBean) GetQueueMessage() string {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.QueueMessage
}

func (t *TaskBean) setQueueMessage(message string) {
	t.QueueMessage = message
}

func (t *TaskBean) Children() []Atom {
	t.mux.RLock()
	defer t.mux.RUnlock()
	var ret []Atom
	for _, item := range t.AtomQueue.Items() {
		ret = append(ret, item)
	}
	return ret
}

func (t *TaskBean) Validate() error {
	t.mux.RLock()
	defer t.mux.RUnlock()
	if err := t.validate(); err != nil {
		return err
	}
	if t.AtomQueue.IsEmpty() {
		return fmt.Errorf("%w: task %q has no sub tasks", ErrInvalidBean, t.Name)
	}
	for _, item := range t.AtomQueue.Items() {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *TaskBean) Clone() Bean {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.clone()
}

func (t *TaskBean) clone() Bean {
	ret := &TaskBean{Queueable: t.copy(), QueueMessage: t.QueueMessage, AtomQueue: &queue.AtomQueue[*SubTaskAtom]{}}
	for _, item := range t.AtomQueue.Items() {
		_ = ret.AtomQueue.Add(item.Clone().(*SubTaskAtom))
	}
	return ret
}

// SubTaskAtom is a sub experiment queued inside a task bean; it owns a queue of atoms
type SubTaskAtom struct {
	Queueable
	QueueMessage string                 `json:"queueMessage,omitempty"`
	AtomQueue    *queue.AtomQueue[Atom] `json:"atomQueue"`
}

// NewSubTaskAtom creates a sub task with the supplied atoms
func NewSubTaskAtom(name string, atoms ...Atom) (*SubTaskAtom, error) {
	ret := &SubTaskAtom{Queueable: newQueueable(name, 0), AtomQueue: &queue.AtomQueue[Atom]{}}
	if err := ret.AddAtom(atoms...); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SubTaskAtom) Kind() Kind { return KindSubTaskAtom }

func (s *SubTaskAtom) isAtom() {}

// AddAtom appends atoms; run time follows the queue run time
func (s *SubTaskAtom) AddAtom(atoms ...Atom) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.AtomQueue == nil {
		s.AtomQueue = &queue.AtomQueue[Atom]{}
	}
	if err := s.AtomQueue.AddAll(atoms...); err != nil {
		return err
	}
	s.RunTime = s.AtomQueue.RunTime()
	return nil
}

func (s *SubTaskAtom) GetQueueMessage() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.QueueMessage
}

func (s *SubTaskAtom) setQueueMessage(message string) {
	s.QueueMessage = message
}

func (s *SubTaskAtom) Children() []Atom {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.AtomQueue.Items()
}

func (s *SubTaskAtom) Validate() error {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if err := s.validate(); err != nil {
		return err
	}
	if s.AtomQueue.IsEmpty() {
		return fmt.Errorf("%w: sub task %q has no atoms", ErrInvalidBean, s.Name)
	}
	for _, item := range s.AtomQueue.Items() {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SubTaskAtom) Clone() Bean {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.clone()
}

func (s *SubTaskAtom) clone() Bean {
	ret := &SubTaskAtom{Queueable: s.copy(), QueueMessage: s.QueueMessage, AtomQueue: &queue.AtomQueue[Atom]{}}
	for _, item := range s.AtomQueue.Items() {
		_ = ret.AtomQueue.Add(item.Clone().(Atom))
	}
	return ret
}
