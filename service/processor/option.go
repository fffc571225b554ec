package processor

import (
	"log/slog"

	"github.com/viant/atomq/progress"
	"github.com/viant/atomq/service/device"
)

// Env holds the collaborators shared by processors
type Env struct {
	Topic           StatusTopic
	Registry        QueueRegistry
	Positioner      device.Positioner
	Monitor         device.Monitor
	Recorder        device.Recorder
	ScanService     device.ScanService
	Logger          *slog.Logger
	CompletePercent float64
	// RunDirectory is used for monitor records that do not name one
	RunDirectory string
}

func (e *Env) completePercent() float64 {
	if e.CompletePercent <= 0 || e.CompletePercent > 100 {
		return progress.DefaultCompletePercent
	}
	return e.CompletePercent
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Option configures a Factory
type Option func(f *Factory)

// WithTopic sets the status topic
func WithTopic(topic StatusTopic) Option {
	return func(f *Factory) {
		f.env.Topic = topic
	}
}

// WithRegistry sets the queue registry used by composite processors
func WithRegistry(registry QueueRegistry) Option {
	return func(f *Factory) {
		f.env.Registry = registry
	}
}

func WithPositioner(positioner device.Positioner) Option {
	return func(f *Factory) {
		f.env.Positioner = positioner
	}
}

func WithMonitor(monitor device.Monitor) Option {
	return func(f *Factory) {
		f.env.Monitor = monitor
	}
}

// WithRecorder sets the monitor value recorder; without it monitor values are only read
func WithRecorder(recorder device.Recorder) Option {
	return func(f *Factory) {
		f.env.Recorder = recorder
	}
}

func WithScanService(service device.ScanService) Option {
	return func(f *Factory) {
		f.env.ScanService = service
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.env.Logger = logger
	}
}

// WithCompletePercent sets the ceiling of listener reported progress
func WithCompletePercent(percent float64) Option {
	return func(f *Factory) {
		f.env.CompletePercent = percent
	}
}

// WithRunDirectory sets the default monitor run directory
func WithRunDirectory(dir string) Option {
	return func(f *Factory) {
		f.env.RunDirectory = dir
	}
}
