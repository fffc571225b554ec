package atomq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/viant/afs"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/dao"
	"github.com/viant/atomq/service/device"
	"github.com/viant/atomq/service/device/dummy"
	"github.com/viant/atomq/service/device/recorder"
	"github.com/viant/atomq/service/event"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/messaging/fs"
	"github.com/viant/atomq/service/meta"
	"github.com/viant/atomq/service/plan"
	"github.com/viant/atomq/service/processor"
	"github.com/viant/atomq/service/registry"
	"github.com/viant/atomq/service/schedule"
	"github.com/viant/atomq/service/statusset"
	"github.com/viant/atomq/tracing"
)

const (
	// StatusTopic is the name of the topic every bean snapshot is published on
	StatusTopic = "status"

	dummyDeviceDelay = 10 * time.Millisecond
)

// Service wires queues, processors, devices and the status set
type Service struct {
	runtime     *Runtime
	config      *Config
	logger      *slog.Logger
	fs          afs.Service
	positioner  device.Positioner
	monitor     device.Monitor
	recorder    device.Recorder
	scanService device.ScanService
	statusStore dao.Service[string, bean.Envelope]
	initErrs    []error
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if tracingConfig := s.config.Tracing; tracingConfig.Enabled {
		if err := tracing.Init(tracingConfig.ServiceName, tracingConfig.ServiceVersion, tracingConfig.OutputFile); err != nil {
			s.initErrs = append(s.initErrs, err)
		}
	}
	if err := errors.Join(s.initErrs...); err != nil {
		return err
	}

	events, err := event.New(s.config.Queue.Vendor,
		event.WithLogger(s.logger),
		event.WithNewFsQueueConfig(s.fsQueueConfig))
	if err != nil {
		return err
	}
	topic, err := event.TopicOf[bean.Envelope](events, StatusTopic)
	if err != nil {
		return err
	}
	queues := registry.New(events, topic,
		registry.WithConfig(s.config.registryConfig()),
		registry.WithLogger(s.logger))

	if s.scanService == nil {
		scanQueueID := s.config.Queue.Root + ".scan-service"
		s.scanService = dummy.NewScanService(dummyDeviceDelay, func(ctx context.Context, b bean.Bean, update bean.Update) error {
			return processor.Publish(ctx, topic, scanQueueID, b, update)
		})
	}
	factory := processor.NewFactory(
		processor.WithTopic(topic),
		processor.WithRegistry(queues),
		processor.WithPositioner(s.positioner),
		processor.WithMonitor(s.monitor),
		processor.WithRecorder(s.recorder),
		processor.WithScanService(s.scanService),
		processor.WithLogger(s.logger),
		processor.WithCompletePercent(s.config.Listener.CompletePercent),
		processor.WithRunDirectory(s.config.Recorder.RunDirectory))
	queues.SetFactory(factory)

	statusSet, err := s.newStatusSet(topic)
	if err != nil {
		return err
	}
	s.runtime = &Runtime{
		config:    s.config,
		events:    events,
		topic:     topic,
		registry:  queues,
		factory:   factory,
		statusSet: statusSet,
		plans:     plan.New(meta.New(s.fs, s.config.Plan.BaseURL)),
		logger:    s.logger,
	}
	s.runtime.scheduler, err = schedule.New(s.runtime, s.config.Schedule.Entries,
		schedule.WithLogger(s.logger),
		schedule.WithCheckInterval(s.config.Schedule.CheckInterval))
	return err
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.positioner == nil {
		s.positioner = dummy.NewPositioner(dummyDeviceDelay)
	}
	if s.monitor == nil {
		s.monitor = dummy.NewMonitor(nil)
	}
	if s.recorder == nil {
		s.recorder = recorder.New(s.fs, s.config.Recorder.BaseURL)
	}
}

func (s *Service) fsQueueConfig(name string) fs.Config {
	ret := fs.DefaultConfig()
	ret.BasePath = path.Join(s.config.Queue.BasePath, name)
	return ret
}

func (s *Service) newStatusSet(topic processor.StatusTopic) (*statusset.Service, error) {
	if s.statusStore != nil {
		return statusset.New(s.statusStore, topic, s.logger), nil
	}
	switch s.config.StatusSet.Vendor {
	case messaging.VendorFS:
		return statusset.NewFs(s.fs, s.config.StatusSet.BaseURL, topic, s.logger), nil
	case statusset.VendorSQLite:
		return statusset.NewSQLite(context.Background(), s.config.StatusSet.DSN, topic, s.logger)
	}
	return statusset.NewMemory(topic, s.logger), nil
}

// Runtime returns the engine runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// New creates a service; devices default to in-process dummies
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}
