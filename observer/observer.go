// Package observer provides OTEL-based observability for retrieval
// operations.
//
// It wires OTLP HTTP exporters for traces, metrics, and logs, exposes the
// instrument set used across the pipeline, and offers an instrumented
// wrapper for any docsift.EmbeddingProvider plus a docsift.Tracer backed by
// OpenTelemetry. Users export to any OTEL-compatible backend by setting
// standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/docsift/docsift/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	IngestRequests metric.Int64Counter
	ChunksIndexed  metric.Int64Counter
	QueryRequests  metric.Int64Counter
	EmbedRequests  metric.Int64Counter

	// Histograms
	IngestDuration metric.Float64Histogram
	QueryDuration  metric.Float64Histogram
	EmbedDuration  metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("docsift")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)
	logger := global.GetLoggerProvider().Logger(scopeName)

	ingestRequests, err := meter.Int64Counter("retrieval.ingest.requests",
		metric.WithDescription("Document ingest count"),
		metric.WithUnit("{document}"))
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter("retrieval.ingest.chunks",
		metric.WithDescription("Chunks written to the index"),
		metric.WithUnit("{chunk}"))
	if err != nil {
		return nil, err
	}

	queryRequests, err := meter.Int64Counter("retrieval.query.requests",
		metric.WithDescription("Retrieval query count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	embedRequests, err := meter.Int64Counter("embedding.requests",
		metric.WithDescription("Embedding request count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram("retrieval.ingest.duration",
		metric.WithDescription("Document ingest duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram("retrieval.query.duration",
		metric.WithDescription("Retrieval query duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	embedDuration, err := meter.Float64Histogram("embedding.duration",
		metric.WithDescription("Embedding call duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:         tracer,
		Meter:          meter,
		Logger:         logger,
		IngestRequests: ingestRequests,
		ChunksIndexed:  chunksIndexed,
		QueryRequests:  queryRequests,
		EmbedRequests:  embedRequests,
		IngestDuration: ingestDuration,
		QueryDuration:  queryDuration,
		EmbedDuration:  embedDuration,
	}, nil
}
