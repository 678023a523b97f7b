package cdrwatch

import (
	"context"
	"errors"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracer and meter are used by all instrumented code. Both start as noops so
// library users can build a Service without InitTelemetry.
var (
	tracer trace.Tracer = noop.NewTracerProvider().Tracer("cdrwatch")
	meter  metric.Meter = metricnoop.NewMeterProvider().Meter("cdrwatch")
)

// InitTelemetry sets up OpenTelemetry trace and metric providers.
// If OTEL_EXPORTER_OTLP_ENDPOINT is set, OTLP HTTP exporters are installed;
// otherwise the noop providers stay in place. The returned function flushes
// and closes the exporters.
func InitTelemetry(serviceName, ver string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) error { return nil }
	}

	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ver),
		),
	)

	var shutdowns []func(context.Context) error

	traceExp, err := otlptracehttp.New(context.Background())
	if err == nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(serviceName)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	metricExp, err := otlpmetrichttp.New(context.Background())
	if err == nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		meter = mp.Meter(serviceName)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
}

// dispatchMetrics groups the dispatcher's counters.
type dispatchMetrics struct {
	launches  metric.Int64Counter
	failures  metric.Int64Counter
	abandoned metric.Int64Counter
	skipped   metric.Int64Counter
}

func newDispatchMetrics(m metric.Meter) dispatchMetrics {
	// Instrument errors only occur for invalid names; fall back to noops.
	fallback := metricnoop.Int64Counter{}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return fallback
		}
		return c
	}
	return dispatchMetrics{
		launches:  counter("cdrwatch.launches", "Successful launches of the CDR executable"),
		failures:  counter("cdrwatch.launch_failures", "Failed launch attempts"),
		abandoned: counter("cdrwatch.items_abandoned", "Items abandoned after exhausting retries"),
		skipped:   counter("cdrwatch.items_skipped", "Items skipped because the folder was empty or the call budget spent"),
	}
}
