package internal

import (
	"context"
	"errors"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrCollectorUnreachable is returned when the OpenTelemetry collector cannot be dialed.
var ErrCollectorUnreachable = errors.New("opentelemetry collector not reachable")

// OTelConfig contains the configuration of the OpenTelemetry exporters.
type OTelConfig struct {
	// ServiceName is the name of the service resource.
	ServiceName string
	// ServiceVersion is the version of the service resource.
	ServiceVersion string

	// Endpoint is the gRPC endpoint of the collector (traces and metrics).
	Endpoint string
	// LogEndpoint is the HTTP endpoint of the collector (logs).
	// When empty, logs are not exported.
	LogEndpoint string

	// TraceRatio is the sampling ratio of the traces.
	TraceRatio float64
	// MetricInterval is the export interval of the metrics.
	MetricInterval time.Duration
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(ctx context.Context) error

func isCollectorReachable(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", endpoint, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// SetupOTel installs the global tracer, meter and logger providers exporting
// to the collector. If the collector is not reachable, ErrCollectorUnreachable is returned
// and the global no-op providers are left in place.
func SetupOTel(ctx context.Context, cfg *OTelConfig) (ShutdownFunc, error) {
	if !isCollectorReachable(cfg.Endpoint) {
		return nil, ErrCollectorUnreachable
	}

	grpcConn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		grpcConn.Close()
		return nil, err
	}

	shutdowns := []ShutdownFunc{}
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		errs = append(errs, grpcConn.Close())
		return errors.Join(errs...)
	}

	// Trace
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(grpcConn))
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceRatio))),
	)
	shutdowns = append(shutdowns, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Meter
	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(grpcConn))
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval)),
		),
	)
	shutdowns = append(shutdowns, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	// Logs
	if cfg.LogEndpoint != "" {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpoint(cfg.LogEndpoint),
			otlploghttp.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx))
		}
		loggerProvider := sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		)
		shutdowns = append(shutdowns, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	// Runtime
	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}

	return shutdown, nil
}
