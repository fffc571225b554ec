package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/viant/atomq"

// Span kinds used by the engine
const (
	KindInternal = trace.SpanKindInternal
	KindConsumer = trace.SpanKindConsumer
)

// Attribute keys
const (
	AttrBeanID   = attribute.Key("bean.id")
	AttrBeanName = attribute.Key("bean.name")
	AttrBeanKind = attribute.Key("bean.kind")
	AttrQueueID  = attribute.Key("queue.id")
	AttrStatus   = attribute.Key("bean.status")
	AttrPercent  = attribute.Key("bean.percent")
)

var (
	providerOnce sync.Once
	providerErr  error
)

// Init installs the stdout exporter; an empty outputFile writes to os.Stdout.
// Only the first call installs a provider.
func Init(serviceName, serviceVersion, outputFile string) error {
	var writer io.Writer = os.Stdout
	if outputFile != "" {
		file, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writer = file
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
	if err != nil {
		return err
	}
	return InitWithExporter(serviceName, serviceVersion, exporter)
}

// InitWithExporter installs a provider batching spans to exporter
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	providerOnce.Do(func() {
		res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		))
		if err != nil {
			providerErr = err
			return
		}
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		))
	})
	return providerErr
}

// Span wraps an OpenTelemetry span; a nil Span is a no-op
type Span struct {
	span trace.Span
}

// Start starts a span named name as a child of the span carried by ctx
func Start(ctx context.Context, name string, kind trace.SpanKind) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithSpanKind(kind))
	return ctx, &Span{span: span}
}

// Bean attaches bean identity attributes
func (s *Span) Bean(b bean.Bean) *Span {
	if s == nil || b == nil {
		return s
	}
	s.span.SetAttributes(
		AttrBeanID.String(b.GetID()),
		AttrBeanName.String(b.GetName()),
		AttrBeanKind.String(string(b.Kind())),
	)
	return s
}

// Queue attaches the queue the bean was taken from
func (s *Span) Queue(queueID string) *Span {
	if s == nil || queueID == "" {
		return s
	}
	s.span.SetAttributes(AttrQueueID.String(queueID))
	return s
}

// Status records a status transition event
func (s *Span) Status(current status.Status, percent float64) {
	if s == nil {
		return
	}
	s.span.AddEvent("status", trace.WithAttributes(AttrStatus.String(string(current)), AttrPercent.Float64(percent)))
}

// End records err, if any, and ends the span
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// FromContext returns the recording span carried by ctx
func FromContext(ctx context.Context) (*Span, bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() || !span.IsRecording() {
		return nil, false
	}
	return &Span{span: span}, true
}
