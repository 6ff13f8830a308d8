package config

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/version"
)

const stdoutEndpoint = "stdout"

type Telemetry struct {
	ctx      context.Context
	metrics  *sdkmetric.MeterProvider
	tracer   *sdktrace.TracerProvider
	shutdown []func(context.Context) error
}

func (t *Telemetry) Shutdown() {
	for _, f := range t.shutdown {
		if err := f(t.ctx); err != nil {
			log.Warn("error shutting down telemetry", log.ErrorField(err))
		}
	}
}

// SetupTelemetry installs global meter and tracer providers exporting to
// TelemetryEndpoint.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "tmtp"),
			attribute.String("service.version", version.Version),
		))
	if err != nil {
		return nil, err
	}
	ret := &Telemetry{ctx: ctx}
	if ret.metrics, err = newMeterProvider(ctx, res); err != nil {
		return nil, err
	}
	ret.shutdown = append(ret.shutdown, ret.metrics.Shutdown)
	otel.SetMeterProvider(ret.metrics)

	if ret.tracer, err = newTracerProvider(ctx, res); err != nil {
		ret.Shutdown()
		return nil, err
	}
	ret.shutdown = append(ret.shutdown, ret.tracer.Shutdown)
	otel.SetTracerProvider(ret.tracer)
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func newMeterProvider(ctx context.Context, res *resource.Resource) (
	*sdkmetric.MeterProvider, error,
) {
	var exporter sdkmetric.Exporter
	var err error
	switch TelemetryEndpoint {
	case "":
		return nil, errors.New("no telemetry endpoint configured")
	case stdoutEndpoint:
		exporter, err = stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	default:
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
			otlpmetricgrpc.WithInsecure())
	}
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	), nil
}

//nolint:whitespace // can't make both editor and linter happy
func newTracerProvider(ctx context.Context, res *resource.Resource) (
	*sdktrace.TracerProvider, error,
) {
	var exporter sdktrace.SpanExporter
	var err error
	if TelemetryEndpoint == stdoutEndpoint {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(TelemetryEndpoint),
			otlptracegrpc.WithInsecure())
	}
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	), nil
}
