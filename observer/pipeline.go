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

// Ingestor is the ingestion surface instrumented by WrapIngestor.
// *ingest.Ingestor satisfies it.
type Ingestor interface {
	Ingest(ctx context.Context, doc docsift.Document) (docsift.IngestResult, error)
	Remove(ctx context.Context, documentID string) error
}

// Retriever is the query surface instrumented by WrapRetriever.
// *docsift.Retriever satisfies it.
type Retriever interface {
	Query(ctx context.Context, text string, opts ...docsift.QueryOption) ([]docsift.Result, error)
	RemoveDocument(ctx context.Context, documentID string) error
	SaveSnapshot(ctx context.Context, path string) error
	LoadSnapshot(ctx context.Context, path string) error
}

// ObservedIngestor wraps an Ingestor with OTEL instrumentation: a span per
// Ingest call, request and chunk counters, a duration histogram, and a
// structured log record.
type ObservedIngestor struct {
	inner Ingestor
	inst  *Instruments
}

var _ Ingestor = (*ObservedIngestor)(nil)

// WrapIngestor returns an instrumented ingestor.
func WrapIngestor(inner Ingestor, inst *Instruments) *ObservedIngestor {
	return &ObservedIngestor{inner: inner, inst: inst}
}

func (o *ObservedIngestor) Ingest(ctx context.Context, doc docsift.Document) (docsift.IngestResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "ingest.request", trace.WithAttributes(
		AttrDocumentID.String(doc.ID),
	))
	defer span.End()
	start := time.Now()

	res, err := o.inner.Ingest(ctx, doc)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			AttrDocumentID.String(res.DocumentID),
			AttrChunkCount.Int(res.ChunkCount),
		)
		o.inst.ChunksIndexed.Add(ctx, int64(res.ChunkCount))
	}

	o.inst.IngestRequests.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(status)))
	o.inst.IngestDuration.Record(ctx, durationMs, metric.WithAttributes(AttrStatus.String(status)))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("ingest completed"))
	rec.AddAttributes(
		otellog.String("retrieval.document_id", res.DocumentID),
		otellog.Int("retrieval.chunk_count", res.ChunkCount),
		otellog.Float64("retrieval.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)

	return res, err
}

func (o *ObservedIngestor) Remove(ctx context.Context, documentID string) error {
	return o.inner.Remove(ctx, documentID)
}

// ObservedRetriever wraps a Retriever with OTEL instrumentation: a span per
// Query call plus a request counter and duration histogram, both tagged with
// the mode that answered.
type ObservedRetriever struct {
	inner Retriever
	inst  *Instruments
}

var _ Retriever = (*ObservedRetriever)(nil)

// WrapRetriever returns an instrumented retriever.
func WrapRetriever(inner Retriever, inst *Instruments) *ObservedRetriever {
	return &ObservedRetriever{inner: inner, inst: inst}
}

func (o *ObservedRetriever) Query(ctx context.Context, text string, opts ...docsift.QueryOption) ([]docsift.Result, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "retrieval.request")
	defer span.End()
	start := time.Now()

	results, err := o.inner.Query(ctx, text, opts...)

	durationMs := float64(time.Since(start).Milliseconds())
	mode := "none"
	if len(results) > 0 {
		mode = string(results[0].Mode)
	}
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(AttrQueryMode.String(mode))

	o.inst.QueryRequests.Add(ctx, 1, metric.WithAttributes(
		AttrQueryMode.String(mode),
		AttrStatus.String(status),
	))
	o.inst.QueryDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrQueryMode.String(mode),
	))

	return results, err
}

func (o *ObservedRetriever) RemoveDocument(ctx context.Context, documentID string) error {
	return o.inner.RemoveDocument(ctx, documentID)
}

func (o *ObservedRetriever) SaveSnapshot(ctx context.Context, path string) error {
	return o.inner.SaveSnapshot(ctx, path)
}

func (o *ObservedRetriever) LoadSnapshot(ctx context.Context, path string) error {
	return o.inner.LoadSnapshot(ctx, path)
}
