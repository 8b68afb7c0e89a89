// Package otel builds the OpenTelemetry trace, metric and log providers of the auth service.
// With a collector endpoint they export over OTLP gRPC; without one they stay in-process.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const metricExportInterval = 10 * time.Second

// Providers bundles the three SDK providers. Shutdown flushes and stops them in reverse
// construction order.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// Settings configures NewProviders.
type Settings struct {
	// Endpoint is the collector address, with or without scheme (localhost:4317,
	// https://collector:4317). Paths and queries are ignored. Empty means no export.
	Endpoint    string
	ServiceName string
	Environment string
	// Insecure dials without TLS even for an https endpoint.
	Insecure bool
}

// exportTarget is a resolved collector address.
type exportTarget struct {
	host     string
	insecure bool
}

// NewProviders returns providers for s. Exporters connect lazily, so a missing collector
// does not fail construction.
func NewProviders(ctx context.Context, s Settings) (*Providers, error) {
	endpoint := strings.TrimSpace(s.Endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  metric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}
	host, insecure, err := grpcTarget(endpoint, s.Insecure)
	if err != nil {
		return nil, err
	}
	target := exportTarget{host: host, insecure: insecure}
	res, err := serviceResource(s)
	if err != nil {
		return nil, err
	}

	p := &Providers{}
	var stops []func(context.Context) error
	stopAll := func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			if err := stops[i](ctx); err != nil {
				slog.Error("telemetry: shutdown", "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	if p.TracerProvider, err = newTracerProvider(ctx, target, res); err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	stops = append(stops, p.TracerProvider.Shutdown)

	if p.MeterProvider, err = newMeterProvider(ctx, target, res); err != nil {
		_ = stopAll(ctx)
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	stops = append(stops, p.MeterProvider.Shutdown)

	if p.LoggerProvider, err = newLoggerProvider(ctx, target, res); err != nil {
		_ = stopAll(ctx)
		return nil, fmt.Errorf("log exporter: %w", err)
	}
	stops = append(stops, p.LoggerProvider.Shutdown)

	p.Shutdown = stopAll
	return p, nil
}

func serviceResource(s Settings) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(s.ServiceName)}
	if s.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", s.Environment))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

func newTracerProvider(ctx context.Context, t exportTarget, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.host)}
	if t.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
}

func newMeterProvider(ctx context.Context, t exportTarget, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(t.host)}
	if t.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	reader := metric.NewPeriodicReader(exp, metric.WithInterval(metricExportInterval))
	return metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)), nil
}

func newLoggerProvider(ctx context.Context, t exportTarget, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(t.host)}
	if t.insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	), nil
}

// grpcTarget reduces endpoint to host:port. A scheme other than https, or insecureOverride,
// selects a plaintext connection.
func grpcTarget(endpoint string, insecureOverride bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, insecureOverride || u.Scheme != "https", nil
}

// SetGlobal installs the tracer and meter providers and the W3C trace-context and baggage
// propagators. The logger provider stays local to the event emitter.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}
