package observer

import (
	"context"
	"time"

	"github.com/docsift/docsift"

	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedEmbedding wraps a docsift.EmbeddingProvider with OTEL
// instrumentation: a span per Embed call, request counter, duration
// histogram, and a structured log record.
type ObservedEmbedding struct {
	inner docsift.EmbeddingProvider
	inst  *Instruments
	model string
}

var _ docsift.EmbeddingProvider = (*ObservedEmbedding)(nil)

// WrapEmbedding returns an instrumented embedding provider.
func WrapEmbedding(inner docsift.EmbeddingProvider, model string, inst *Instruments) *ObservedEmbedding {
	return &ObservedEmbedding{inner: inner, inst: inst, model: model}
}

func (o *ObservedEmbedding) Name() string    { return o.inner.Name() }
func (o *ObservedEmbedding) Dimensions() int { return o.inner.Dimensions() }

func (o *ObservedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "embedding.embed", trace.WithAttributes(
		AttrModel.String(o.model),
		AttrProvider.String(o.inner.Name()),
		AttrEmbedTextCount.Int(len(texts)),
		AttrEmbedDimensions.Int(o.inner.Dimensions()),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Embed(ctx, texts)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	o.inst.EmbedRequests.Add(ctx, 1, metric.WithAttributes(
		AttrModel.String(o.model),
		AttrProvider.String(o.inner.Name()),
		AttrStatus.String(status),
	))
	o.inst.EmbedDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrModel.String(o.model),
		AttrProvider.String(o.inner.Name()),
	))

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("embedding completed"))
	rec.AddAttributes(
		otellog.String("embedding.model", o.model),
		otellog.String("embedding.provider", o.inner.Name()),
		otellog.Int("embedding.text_count", len(texts)),
		otellog.Float64("embedding.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}
