package bean

import (
	"fmt"
	"sort"
)

// MoveAtom sets one or more devices to the configured positions
type MoveAtom struct {
	Queueable
	PositionConfig map[string]interface{} `json:"positionConfig"`
}

// NewMoveAtom creates a move of the named devices to target positions
func NewMoveAtom(name string, runTime int64, positions map[string]interface{}) *MoveAtom {
	return &MoveAtom{Queueable: newQueueable(name, runTime), PositionConfig: positions}
}

func (m *MoveAtom) Kind() Kind { return KindMoveAtom }

func (m *MoveAtom) isAtom() {}

// Targets returns a copy of the position config
func (m *MoveAtom) Targets() map[string]interface{} {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return copyMap(m.PositionConfig)
}

// Devices returns sorted device names to move
func (m *MoveAtom) Devices() []string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	var ret []string
	for name := range m.PositionConfig {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (m *MoveAtom) Validate() error {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if err := m.validate(); err != nil {
		return err
	}
	if len(m.PositionConfig) == 0 {
		return fmt.Errorf("%w: move %q has no target positions", ErrInvalidBean, m.Name)
	}
	return nil
}

func (m *MoveAtom) Clone() Bean {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.clone()
}

func (m *MoveAtom) clone() Bean {
	return &MoveAtom{Queueable: m.copy(), PositionConfig: copyMap(m.PositionConfig)}
}

// MonitorAtom reads a single monitor and records its value
type MonitorAtom struct {
	Queueable
	Monitor      string `json:"monitor"`
	FilePath     string `json:"filePath,omitempty"`
	Dataset      string `json:"dataset,omitempty"`
	RunDirectory string `json:"runDirectory,omitempty"`
}

// NewMonitorAtom creates a read of the named monitor
func NewMonitorAtom(name string, runTime int64, monitor string) *MonitorAtom {
	return &MonitorAtom{Queueable: newQueueable(name, runTime), Monitor: monitor}
}

func (m *MonitorAtom) Kind() Kind { return KindMonitorAtom }

func (m *MonitorAtom) isAtom() {}

// MonitorName returns the monitor device name
func (m *MonitorAtom) MonitorName() string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.Monitor
}

// GetRunDirectory returns the directory the value is recorded under
func (m *MonitorAtom) GetRunDirectory() string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.RunDirectory
}

// SetOutput records where the value was written
func (m *MonitorAtom) SetOutput(filePath, dataset string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.FilePath = filePath
	m.Dataset = dataset
}

func (m *MonitorAtom) Validate() error {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if err := m.validate(); err != nil {
		return err
	}
	if m.Monitor == "" {
		return fmt.Errorf("%w: monitor atom %q has no monitor", ErrInvalidBean, m.Name)
	}
	return nil
}

func (m *MonitorAtom) Clone() Bean {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.clone()
}

func (m *MonitorAtom) clone() Bean {
	return &MonitorAtom{Queueable: m.copy(), Monitor: m.Monitor, FilePath: m.FilePath, Dataset: m.Dataset, RunDirectory: m.RunDirectory}
}

// ScanRequest describes a sub scan; point generation happens outside the engine
type ScanRequest struct {
	Points    []map[string]interface{} `json:"points,omitempty"`
	Detectors map[string]interface{}   `json:"detectors,omitempty"`
	Monitors  []string                 `json:"monitors,omitempty"`
	FilePath  string                   `json:"filePath,omitempty"`
}

// Clone returns a deep copy of the request
func (r *ScanRequest) Clone() *ScanRequest {
	if r == nil {
		return nil
	}
	ret := &ScanRequest{FilePath: r.FilePath, Detectors: copyMap(r.Detectors), Monitors: append([]string(nil), r.Monitors...)}
	for _, point := range r.Points {
		ret.Points = append(ret.Points, copyMap(point))
	}
	return ret
}

// ScanAtom runs a complete sub scan through the scan service
type ScanAtom struct {
	Queueable
	ScanRequest *ScanRequest `json:"scanRequest"`
}

// NewScanAtom creates a scan atom
func NewScanAtom(name string, runTime int64, request *ScanRequest) *ScanAtom {
	return &ScanAtom{Queueable: newQueueable(name, runTime), ScanRequest: request}
}

func (s *ScanAtom) Kind() Kind { return KindScanAtom }

func (s *ScanAtom) isAtom() {}

// Request returns a copy of the scan request
func (s *ScanAtom) Request() *ScanRequest {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.ScanRequest.Clone()
}

func (s *ScanAtom) Validate() error {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if err := s.validate(); err != nil {
		return err
	}
	if s.ScanRequest == nil {
		return fmt.Errorf("%w: scan atom %q has no scan request", ErrInvalidBean, s.Name)
	}
	return nil
}

func (s *ScanAtom) Clone() Bean {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.clone()
}

func (s *ScanAtom) clone() Bean {
	return &ScanAtom{Queueable: s.copy(), ScanRequest: s.ScanRequest.Clone()}
}

// ScanBean is the scan service job created by a scan atom
type ScanBean struct {
	Queueable
	ScanRequest *ScanRequest `json:"scanRequest"`
	FilePath    string       `json:"filePath,omitempty"`
	Point       int          `json:"point"`
	Size        int          `json:"size"`
}

// NewScanBean creates a scan bean from the scan atom carrying over its identity fields
func NewScanBean(atom *ScanAtom) *ScanBean {
	atom.mux.RLock()
	defer atom.mux.RUnlock()
	ret := &ScanBean{Queueable: newQueueable(atom.Name, atom.RunTime), ScanRequest: atom.ScanRequest.Clone()}
	ret.Beamline = atom.Beamline
	ret.HostName = atom.HostName
	ret.UserName = atom.UserName
	if ret.ScanRequest != nil {
		ret.Size = len(ret.ScanRequest.Points)
		ret.FilePath = ret.ScanRequest.FilePath
	}
	return ret
}

func (s *ScanBean) Kind() Kind { return KindScanBean }

// SetPoint records the scan position
func (s *ScanBean) SetPoint(point int) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.Point = point
}

func (s *ScanBean) Validate() error {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if err := s.validate(); err != nil {
		return err
	}
	if s.ScanRequest == nil {
		return fmt.Errorf("%w: scan %q has no scan request", ErrInvalidBean, s.Name)
	}
	return nil
}

func (s *ScanBean) Clone() Bean {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.clone()
}

func (s *ScanBean) clone() Bean {
	return &ScanBean{Queueable: s.copy(), ScanRequest: s.ScanRequest.Clone(), FilePath: s.FilePath, Point: s.Point, Size: s.Size}
}

func copyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	ret := make(map[string]interface{}, len(src))
	for k, v := range src {
		ret[k] = v
	}
	return ret
}
