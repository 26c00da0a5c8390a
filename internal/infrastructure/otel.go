package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"sczmerge/internal/config"
	"sczmerge/pkg/contracts"
)

const (
	ServiceName = "sczmerge"
	MeterName   = "sczmerge"
)

// Telemetry holds the tracer and meter used by a run. When telemetry is
// disabled both are no-op implementations, so callers never nil-check.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *PipelineMetrics
	Runtime        *RuntimeMetrics
	Logger         *slog.Logger

	registry    *promclient.Registry
	traceFile   *os.File
	metricsFile string
}

// PipelineMetrics holds the instruments recorded by the merge pipeline
type PipelineMetrics struct {
	FilesDiscovered     metric.Int64Counter
	FilesLoaded         metric.Int64Counter
	FilesSkipped        metric.Int64Counter
	FallbackDecodes     metric.Int64Counter
	RowsMerged          metric.Int64Counter
	CoercedMissingCells metric.Int64Counter
	ArtifactsWritten    metric.Int64Counter
	StepDuration        metric.Float64Histogram
	StepErrors          metric.Int64Counter
}

// NewNoopTelemetry returns telemetry that records nothing
func NewNoopTelemetry(logger *slog.Logger) *Telemetry {
	meter := metricnoop.NewMeterProvider().Meter(MeterName)
	// noop instruments never fail to register
	metrics, _ := CreatePipelineMetrics(meter)
	runtimeMetrics, _ := NewRuntimeMetrics(meter)

	return &Telemetry{
		Tracer:  tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:   meter,
		Metrics: metrics,
		Runtime: runtimeMetrics,
		Logger:  logger,
	}
}

// InitializeTelemetry sets up tracing and metrics for a single run.
// Spans are written as JSON to cfg.TraceFile; metrics are gathered on a
// private Prometheus registry and dumped to cfg.MetricsFile on Shutdown.
func InitializeTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	if !cfg.Enabled {
		return NewNoopTelemetry(logger), nil
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", ServiceName),
		slog.String("version", contracts.Version),
		slog.String("environment", cfg.Environment),
		slog.String("trace_file", cfg.TraceFile),
		slog.String("metrics_file", cfg.MetricsFile))

	res := createResource(cfg)

	t := &Telemetry{
		Logger:      logger,
		metricsFile: cfg.MetricsFile,
	}

	if err := t.initializeTracing(cfg, res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := t.initializeMetrics(res); err != nil {
		t.closeTraceFile()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	metrics, err := CreatePipelineMetrics(t.Meter)
	if err != nil {
		t.closeTraceFile()
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Metrics = metrics

	runtimeMetrics, err := NewRuntimeMetrics(t.Meter)
	if err != nil {
		t.closeTraceFile()
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}
	t.Runtime = runtimeMetrics

	return t, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg config.TelemetryConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(contracts.Version),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

func (t *Telemetry) initializeTracing(cfg config.TelemetryConfig, res *resource.Resource) error {
	if cfg.TraceFile == "" {
		t.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.TraceFile), config.DirPermissions); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	file, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, config.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open trace file %s: %w", cfg.TraceFile, err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	t.traceFile = file
	t.TracerProvider = tp
	t.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(contracts.Version))
	return nil
}

func (t *Telemetry) initializeMetrics(res *resource.Resource) error {
	t.registry = promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(t.registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	t.MeterProvider = mp
	t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(contracts.Version))
	return nil
}

// CreatePipelineMetrics creates the merge pipeline instruments
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	filesDiscovered, err := meter.Int64Counter(
		"sczmerge_files_discovered",
		metric.WithDescription("Input files found by discovery"),
	)
	if err != nil {
		return nil, err
	}

	filesLoaded, err := meter.Int64Counter(
		"sczmerge_files_loaded",
		metric.WithDescription("Input files loaded successfully"),
	)
	if err != nil {
		return nil, err
	}

	filesSkipped, err := meter.Int64Counter(
		"sczmerge_files_skipped",
		metric.WithDescription("Input files skipped after a load failure"),
	)
	if err != nil {
		return nil, err
	}

	fallbackDecodes, err := meter.Int64Counter(
		"sczmerge_fallback_decodes",
		metric.WithDescription("Input files decoded with the fallback encoding"),
	)
	if err != nil {
		return nil, err
	}

	rowsMerged, err := meter.Int64Counter(
		"sczmerge_rows_merged",
		metric.WithDescription("Rows in the unified table"),
	)
	if err != nil {
		return nil, err
	}

	coercedMissing, err := meter.Int64Counter(
		"sczmerge_coerced_missing_cells",
		metric.WithDescription("Non-missing cells that became missing during numeric coercion"),
	)
	if err != nil {
		return nil, err
	}

	artifactsWritten, err := meter.Int64Counter(
		"sczmerge_artifacts",
		metric.WithDescription("Artifacts attempted, labelled by format and outcome"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"sczmerge_step_duration",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepErrors, err := meter.Int64Counter(
		"sczmerge_step_errors",
		metric.WithDescription("Pipeline steps that failed"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		FilesDiscovered:     filesDiscovered,
		FilesLoaded:         filesLoaded,
		FilesSkipped:        filesSkipped,
		FallbackDecodes:     fallbackDecodes,
		RowsMerged:          rowsMerged,
		CoercedMissingCells: coercedMissing,
		ArtifactsWritten:    artifactsWritten,
		StepDuration:        stepDuration,
		StepErrors:          stepErrors,
	}, nil
}

// RecordStep records duration and outcome of one pipeline step
func (m *PipelineMetrics) RecordStep(ctx context.Context, stepID string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("step", stepID))
	m.StepDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.StepErrors.Add(ctx, 1, attrs)
	}
}

// RecordArtifact records one artifact write attempt
func (m *PipelineMetrics) RecordArtifact(ctx context.Context, format string, ok bool) {
	if m == nil {
		return
	}

	outcome := "written"
	if !ok {
		outcome = "failed"
	}
	m.ArtifactsWritten.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("outcome", outcome),
	))
}

// Shutdown flushes spans, writes the metrics textfile and releases files.
// It is safe to call on no-op telemetry.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if err := t.closeTraceFile(); err != nil {
		errs = append(errs, fmt.Errorf("trace file close: %w", err))
	}

	if t.registry != nil && t.metricsFile != "" {
		if err := t.WriteMetrics(t.metricsFile); err != nil {
			errs = append(errs, err)
		}
	}

	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %w", errors.Join(errs...))
	}

	if t.MeterProvider != nil || t.TracerProvider != nil {
		t.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	}
	return nil
}

// WriteMetrics dumps the current metric values in the Prometheus text format
func (t *Telemetry) WriteMetrics(path string) error {
	if t.registry == nil {
		return errors.New("metrics are not enabled")
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DirPermissions); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := promclient.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

func (t *Telemetry) closeTraceFile() error {
	if t.traceFile == nil {
		return nil
	}
	err := t.traceFile.Close()
	t.traceFile = nil
	return err
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
