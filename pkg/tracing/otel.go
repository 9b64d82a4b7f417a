package tracing

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/opsbed/fibsvc/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/opsbed/fibsvc"

var tracer trace.Tracer

// InitTracer sets up the OTLP trace exporter and registers the global tracer
// provider. When profiling is enabled the provider is wrapped so spans link
// to Pyroscope profiles. Returns a shutdown func that flushes pending spans.
func InitTracer(ctx context.Context, serviceName string, cfg config.TelemetryConfig, enableProfiling bool) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithMaxQueueSize(2048),
		),
		sdktrace.WithResource(newResource(serviceName)),
		sdktrace.WithSampler(newSampler(cfg.SamplingRate)),
	)

	if enableProfiling {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp))
	} else {
		otel.SetTracerProvider(tp)
	}

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	tracer = otel.GetTracerProvider().Tracer(
		tracerName,
		trace.WithInstrumentationVersion(serviceVersion()),
	)

	return tp.Shutdown, nil
}

// NewResource builds the resource shared by the trace and metric providers.
func NewResource(serviceName string) *sdkresource.Resource {
	return newResource(serviceName)
}

func newResource(serviceName string) *sdkresource.Resource {
	return sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion()),
		semconv.DeploymentEnvironment(getEnvironment()),
		attribute.String("service.instance.id", getInstanceID()),
		attribute.String("go.version", runtime.Version()),
	)
}

// GetTracer returns a tracer tagged with the component name.
func GetTracer(component string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(
		tracerName,
		trace.WithInstrumentationVersion(serviceVersion()),
		trace.WithInstrumentationAttributes(
			attribute.String("component", component),
		),
	)
}

// StartSpan starts a span on the package tracer, falling back to the span
// already in the context when tracing was never initialized.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartSpanWithAttributes starts a span with initial attributes.
func StartSpanWithAttributes(ctx context.Context, spanName string, attrs []attribute.KeyValue, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(attrs...))
	return StartSpan(ctx, spanName, opts...)
}

// RecordError records err on the span and sets the error status.
func RecordError(span trace.Span, err error, description string, attrs ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, attrs...)
	span.SetStatus(codes.Error, description)
}

// AddSpanEvent adds a named event with attributes to the span.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func serviceVersion() string {
	version := os.Getenv("SERVICE_VERSION")
	if version == "" {
		version = "1.0.0"
	}
	return version
}

func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "development"
	}
	return env
}

func getInstanceID() string {
	for _, key := range []string{"INSTANCE_ID", "HOSTNAME", "POD_NAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "unknown"
}

func newSampler(rate string) sdktrace.Sampler {
	switch rate {
	case "0":
		return sdktrace.NeverSample()
	case "1", "":
		return sdktrace.AlwaysSample()
	default:
		// Production default: parent-based 10% sampling.
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))
	}
}
