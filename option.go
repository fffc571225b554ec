package atomq

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/dao"
	"github.com/viant/atomq/service/device"
	"github.com/viant/atomq/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service
type Option func(s *Service)

// WithConfig sets the engine configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger shared by every component
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFs sets the storage service used by the recorder, fs queues and plans
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithPositioner sets the device positioner used by move atoms
func WithPositioner(positioner device.Positioner) Option {
	return func(s *Service) {
		s.positioner = positioner
	}
}

// WithMonitor sets the monitor reader used by monitor atoms
func WithMonitor(monitor device.Monitor) Option {
	return func(s *Service) {
		s.monitor = monitor
	}
}

// WithRecorder sets the recorder storing monitor values
func WithRecorder(recorder device.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithScanService sets the scan service used by scan atoms
func WithScanService(service device.ScanService) Option {
	return func(s *Service) {
		s.scanService = service
	}
}

// WithStatusStore sets the store keeping the latest bean snapshots
func WithStatusStore(store dao.Service[string, bean.Envelope]) Option {
	return func(s *Service) {
		s.statusStore = store
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			s.initErrs = append(s.initErrs, err)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for
// example OTLP, Jaeger or Zipkin. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.initErrs = append(s.initErrs, err)
		}
	}
}
