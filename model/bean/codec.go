package bean

import (
	"encoding/json"
	"fmt"

	"github.com/viant/atomq/model/queue"
)

var kinds = map[Kind]func() Bean{
	KindTaskBean:    func() Bean { return &TaskBean{} },
	KindSubTaskAtom: func() Bean { return &SubTaskAtom{} },
	KindMoveAtom:    func() Bean { return &MoveAtom{} },
	KindMonitorAtom: func() Bean { return &MonitorAtom{} },
	KindScanAtom:    func() Bean { return &ScanAtom{} },
	KindScanBean:    func() Bean { return &ScanBean{} },
}

// Kinds returns every supported kind
func Kinds() []Kind {
	return []Kind{KindTaskBean, KindSubTaskAtom, KindMoveAtom, KindMonitorAtom, KindScanAtom, KindScanBean}
}

// Decode decodes a bean using its "kind" discriminator
func Decode(data []byte) (Bean, error) {
	probe := struct {
		Kind Kind `json:"kind"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode bean kind: %w", err)
	}
	newBean, ok := kinds[probe.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, probe.Kind)
	}
	ret := newBean()
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", probe.Kind, err)
	}
	return ret, nil
}

// Envelope carries any bean through queues and stores
type Envelope struct {
	Bean Bean
}

// Wrap returns an envelope holding the bean
func Wrap(b Bean) *Envelope {
	return &Envelope{Bean: b}
}

// ID returns the wrapped bean ID
func (e *Envelope) ID() string {
	if e == nil || e.Bean == nil {
		return ""
	}
	return e.Bean.GetID()
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Bean == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Bean)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Bean = nil
		return nil
	}
	b, err := Decode(data)
	if err != nil {
		return err
	}
	e.Bean = b
	return nil
}

type kindField struct {
	Kind Kind `json:"kind"`
}

func (t *TaskBean) MarshalJSON() ([]byte, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	type alias TaskBean
	return json.Marshal(struct {
		kindField
		*alias
	}{kindField{KindTaskBean}, (*alias)(t)})
}

func (t *TaskBean) UnmarshalJSON(data []byte) error {
	type alias TaskBean
	aux := struct {
		*alias
		AtomQueue *struct {
			Atoms []*SubTaskAtom `json:"atoms"`
		} `json:"atomQueue"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.AtomQueue = &queue.AtomQueue[*SubTaskAtom]{}
	if aux.AtomQueue == nil {
		return nil
	}
	return t.AtomQueue.AddAll(aux.AtomQueue.Atoms...)
}

func (s *SubTaskAtom) MarshalJSON() ([]byte, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	type alias SubTaskAtom
	return json.Marshal(struct {
		kindField
		*alias
	}{kindField{KindSubTaskAtom}, (*alias)(s)})
}

func (s *SubTaskAtom) UnmarshalJSON(data []byte) error {
	type alias SubTaskAtom
	aux := struct {
		*alias
		AtomQueue *struct {
			Atoms []json.RawMessage `json:"atoms"`
		} `json:"atomQueue"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.AtomQueue = &queue.AtomQueue[Atom]{}
	if aux.AtomQueue == nil {
		return nil
	}
	for _, raw := range aux.AtomQueue.Atoms {
		decoded, err := Decode(raw)
		if err != nil {
			return err
		}
		atom, ok := decoded.(Atom)
		if !ok {
			return fmt.Errorf("%w: %v can not be queued in a sub task", ErrUnknownKind, decoded.Kind())
		}
		if err = s.AtomQueue.Add(atom); err != nil {
			return err
		}
	}
	return nil
}

func (m *MoveAtom) MarshalJSON() ([]byte, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	type alias MoveAtom
	return json.Marshal(struct {
		kindField
		*alias
	}{kindField{KindMoveAtom}, (*alias)(m)})
}

func (m *MonitorAtom) MarshalJSON() ([]byte, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	type alias MonitorAtom
	return json.Marshal(struct {
		kindField
		*alias
	}{kindField{KindMonitorAtom}, (*alias)(m)})
}

func (s *ScanAtom) MarshalJSON() ([]byte, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	type alias ScanAtom
	return json.Marshal(struct {
		kindField
		*alias
	}{kindField{KindScanAtom}, (*alias)(s)})
}

func (s *ScanBean) MarshalJSON() ([]byte, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	type alias ScanBean
	return json.Marshal(struct {
		kindField
		*alias
	}{kindField{KindScanBean}, (*alias)(s)})
}
