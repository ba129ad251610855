// Package internal contains the telemetry shared by the stages.
package internal

import (
	"context"
	"log/slog"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const scopePrefix = "github.com/FerroO2000/plogger/"

// Telemetry bundles the logger, the tracer and the meter of a stage.
type Telemetry struct {
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

// NewTelemetry returns the telemetry for the given stage.
// It uses the default slog logger and the global OpenTelemetry providers.
func NewTelemetry(stageKind, stageName string) *Telemetry {
	return NewTelemetryWithLogger(stageKind, stageName, slog.Default())
}

// NewTelemetryWithLogger is like NewTelemetry but logs through the given logger.
func NewTelemetryWithLogger(stageKind, stageName string, logger *slog.Logger) *Telemetry {
	scope := scopePrefix + stageKind + "/" + stageName

	return &Telemetry{
		logger: logger.With("stage_kind", stageKind, "stage_name", stageName),
		tracer: otel.Tracer(scope),
		meter:  otel.Meter(scope),
	}
}

// LogDebug logs a debug message.
func (t *Telemetry) LogDebug(msg string, args ...any) {
	t.logger.Debug(msg, args...)
}

// LogInfo logs an info message.
func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.logger.Info(msg, args...)
}

// LogWarn logs a warning message.
func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.logger.Warn(msg, args...)
}

// LogError logs an error message with the error attached.
func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.logger.Error(msg, append([]any{tint.Err(err)}, args...)...)
}

// NewCounter registers an observable counter whose value is read
// from valueFn on every collection.
func (t *Telemetry) NewCounter(name string, valueFn func() int64) {
	_, err := t.meter.Int64ObservableCounter(name,
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(valueFn())
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create counter", err, "name", name)
	}
}

// Histogram is an int64 histogram.
type Histogram struct {
	histogram metric.Int64Histogram
}

// Record records the value.
func (h *Histogram) Record(ctx context.Context, value int64) {
	h.histogram.Record(ctx, value)
}

// NewHistogram returns a new histogram.
// If the histogram cannot be created, a no-op one is returned.
func (t *Telemetry) NewHistogram(name string, opts ...metric.Int64HistogramOption) *Histogram {
	histogram, err := t.meter.Int64Histogram(name, opts...)
	if err != nil {
		t.LogError("failed to create histogram", err, "name", name)
		histogram = noop.Int64Histogram{}
	}

	return &Histogram{
		histogram: histogram,
	}
}

// NewTrace starts a new span.
func (t *Telemetry) NewTrace(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName)
}
