package dummy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/device"
	"github.com/viant/atomq/service/event"
)

// ErrUnknownScan is returned when commanding a scan that was never submitted
var ErrUnknownScan = errors.New("dummy: unknown scan")

// ScanService steps through scan points, one every StepDelay
type ScanService struct {
	StepDelay time.Duration
	// FailAt makes scans fail at the given 1 based point when positive
	FailAt    int
	broadcast device.Broadcaster
	mux       sync.Mutex
	scans     map[string]*scanRun
}

type scanRun struct {
	scan     *bean.ScanBean
	mux      sync.Mutex
	pubMux   sync.Mutex
	resume   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	stopCtx  context.Context
}

// NewScanService creates a scan service reporting through broadcast
func NewScanService(stepDelay time.Duration, broadcast device.Broadcaster) *ScanService {
	return &ScanService{StepDelay: stepDelay, broadcast: broadcast, scans: map[string]*scanRun{}}
}

// Submit starts the scan asynchronously
func (s *ScanService) Submit(ctx context.Context, scan *bean.ScanBean) error {
	if scan == nil {
		return bean.ErrNilBean
	}
	run := &scanRun{scan: scan, stop: make(chan struct{})}
	s.mux.Lock()
	if _, ok := s.scans[scan.GetID()]; ok {
		s.mux.Unlock()
		return fmt.Errorf("scan %v was already submitted", scan.GetID())
	}
	s.scans[scan.GetID()] = run
	s.mux.Unlock()
	go s.run(context.WithoutCancel(ctx), run)
	return nil
}

func (s *ScanService) run(ctx context.Context, run *scanRun) {
	defer func() {
		s.mux.Lock()
		delete(s.scans, run.scan.GetID())
		s.mux.Unlock()
	}()
	s.publish(ctx, run, bean.Update{Status: status.Running, Percent: bean.Percent(0), Message: bean.Text("Scan started.")})
	size := run.scan.Size
	for i := 1; i <= size; i++ {
		if !s.step(run) {
			s.publish(run.stopCtx, run, bean.Update{Status: status.Terminated, Message: bean.Text("Scan aborted.")})
			return
		}
		run.scan.SetPoint(i)
		if s.FailAt == i {
			s.publish(ctx, run, bean.Update{Status: status.Failed, Message: bean.Text(fmt.Sprintf("Scan failed at point %d.", i))})
			return
		}
		s.publish(ctx, run, bean.Update{Percent: bean.Percent(float64(i) * 100 / float64(size)), Message: bean.Text(fmt.Sprintf("Point %d of %d.", i, size))})
	}
	s.publish(ctx, run, bean.Update{Status: status.Complete, Message: bean.Text("Scan complete.")})
}

// step waits for the next point; false means the scan was stopped
func (s *ScanService) step(run *scanRun) bool {
	if s.StepDelay > 0 {
		timer := time.NewTimer(s.StepDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-run.stop:
			return false
		}
	}
	for {
		run.mux.Lock()
		resume := run.resume
		run.mux.Unlock()
		if resume == nil {
			break
		}
		select {
		case <-resume:
		case <-run.stop:
			return false
		}
	}
	select {
	case <-run.stop:
		return false
	default:
		return true
	}
}

func (s *ScanService) publish(ctx context.Context, run *scanRun, update bean.Update) {
	run.pubMux.Lock()
	defer run.pubMux.Unlock()
	if s.broadcast == nil {
		_ = bean.Apply(run.scan, update)
		return
	}
	_ = s.broadcast(ctx, run.scan, update)
}

// Command applies a pause, resume or terminate request to a running scan
func (s *ScanService) Command(ctx context.Context, scanID string, command status.Status) error {
	s.mux.Lock()
	run, ok := s.scans[scanID]
	s.mux.Unlock()
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownScan, scanID)
	}
	switch command {
	case status.RequestPause:
		s.publish(ctx, run, bean.Update{Status: status.RequestPause})
		run.mux.Lock()
		if run.resume == nil {
			run.resume = make(chan struct{})
		}
		run.mux.Unlock()
		s.publish(ctx, run, bean.Update{Status: status.Paused, Message: bean.Text("Scan paused.")})
	case status.RequestResume:
		s.publish(ctx, run, bean.Update{Status: status.RequestResume})
		run.mux.Lock()
		if run.resume != nil {
			close(run.resume)
			run.resume = nil
		}
		run.mux.Unlock()
		s.publish(ctx, run, bean.Update{Status: status.Resumed})
		s.publish(ctx, run, bean.Update{Status: status.Running, Message: bean.Text("Scan resumed.")})
	case status.RequestTerminate:
		run.stopOnce.Do(func() {
			run.stopCtx = event.WithSource(context.WithoutCancel(ctx), event.SourceFrom(ctx))
			s.publish(ctx, run, bean.Update{Status: status.RequestTerminate})
			close(run.stop)
		})
	default:
		return fmt.Errorf("unsupported scan command: %v", command)
	}
	return nil
}

var _ device.ScanService = (*ScanService)(nil)
