// Package observability exports pool statistics and workload traces through
// OpenTelemetry. Prometheus export lives in pkg/metrics; this package covers
// deployments that collect through an otel pipeline instead.
package observability

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// Exporter types.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config contains tracing and metering configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	ExporterType   string // "stdout" or "none"
	BatchTimeout   time.Duration
}

// DefaultConfig returns a default observability configuration
func DefaultConfig() Config {
	return Config{
		ServiceName:    "reservoir",
		ServiceVersion: "1.0.0",
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   1.0,
		ExporterType:   getEnv("TRACING_EXPORTER", ExporterNone),
		BatchTimeout:   5 * time.Second,
	}
}

// Option customizes a Provider.
type Option func(*providerOptions)

type providerOptions struct {
	writer     io.Writer
	processors []sdktrace.SpanProcessor
}

// WithWriter sends stdout exporter output to w.
func WithWriter(w io.Writer) Option {
	return func(o *providerOptions) { o.writer = w }
}

// WithSpanProcessor adds a span processor next to the configured exporter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *providerOptions) { o.processors = append(o.processors, sp) }
}

// Provider owns a tracer provider and a meter provider. Metrics are pulled
// through a manual reader, so Collect decides when pool callbacks run.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	tracer         trace.Tracer
	meter          metric.Meter
}

// NewProvider builds a provider from cfg.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	o := providerOptions{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to create resource")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	switch cfg.ExporterType {
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(o.writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to create stdout exporter")
		}
		timeout := cfg.BatchTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(timeout)))
	case ExporterNone, "":
	default:
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "unknown trace exporter").
			WithDetail("exporter", cfg.ExporterType)
	}
	for _, sp := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	tp := sdktrace.NewTracerProvider(tpOpts...)

	return &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		reader:         reader,
		tracer:         tp.Tracer(cfg.ServiceName),
		meter:          mp.Meter(cfg.ServiceName),
	}, nil
}

// SetGlobal installs the provider as the process-wide otel provider.
func (p *Provider) SetGlobal() {
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Meter returns the provider's meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// StartSpan starts a span with the given attributes.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Collect runs every registered callback and returns the result.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to shutdown tracer"))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to shutdown meter"))
	}
	return errors.Join(errs...)
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
