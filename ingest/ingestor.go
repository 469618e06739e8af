package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docsift/docsift"
)

// Ingestor provides end-to-end ingestion: chunk → embed (best-effort) → index.
//
// Concurrent ingests for the same document id are serialized through a
// per-id lock so a replace (remove + add) never interleaves with another
// ingest of the same document. Ingests for unrelated ids run concurrently.
type Ingestor struct {
	index     docsift.Index
	embedding docsift.EmbeddingProvider
	chunker   *TokenChunker
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
	tracer    docsift.Tracer

	mu    sync.Mutex
	inUse map[string]*docLock
}

// docLock serializes ingests for one document id and is dropped from the map
// once no ingest holds or waits on it.
type docLock struct {
	sync.Mutex
	refs int
}

// New creates an Ingestor with the default chunker (512-token windows,
// 50-token overlap) and a batch size of 64. embedding may be nil; ingested
// chunks are then indexed without vectors.
func New(index docsift.Index, embedding docsift.EmbeddingProvider, opts ...Option) *Ingestor {
	chunker, err := NewTokenChunker()
	if err != nil {
		// Defaults are always valid.
		panic(err)
	}
	ing := &Ingestor{
		index:     index,
		embedding: embedding,
		chunker:   chunker,
		batchSize: 64,
		timeout:   30 * time.Second,
		logger:    slog.New(discardHandler{}),
		inUse:     make(map[string]*docLock),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// Ingest chunks the document, embeds the chunks best-effort, and adds the
// entries to the index, replacing any previous entries for the same id.
//
// When the embedding provider fails or the context is cancelled mid-embed,
// no vectors are stored (never a partial set) and the chunks are indexed
// for keyword search only; IngestResult.Embedded reports which happened.
// The only errors returned are index failures — an unreachable provider is
// not an error here.
func (ing *Ingestor) Ingest(ctx context.Context, doc docsift.Document) (docsift.IngestResult, error) {
	if doc.ID == "" {
		doc.ID = docsift.NewID()
	}

	ctx, span := ing.startSpan(ctx, "ingest.document",
		docsift.StringAttr("document.id", doc.ID),
		docsift.StringAttr("document.source", doc.Source),
	)
	defer ing.endSpan(span)

	windows := ing.chunker.Chunk(doc.Content)

	unlock := ing.lockDocument(doc.ID)
	defer unlock()

	if len(windows) == 0 {
		// Replace semantics still apply: re-ingesting an emptied document
		// evicts its previous chunks.
		if err := ing.index.Remove(ctx, doc.ID); err != nil {
			return docsift.IngestResult{}, fmt.Errorf("remove prior entries: %w", err)
		}
		return docsift.IngestResult{DocumentID: doc.ID}, nil
	}

	entries := make([]docsift.Entry, len(windows))
	for i, w := range windows {
		entries[i] = docsift.Entry{
			Chunk: docsift.Chunk{
				DocumentID: doc.ID,
				Seq:        i,
				Start:      w.Start,
				End:        w.End,
				Text:       w.Text,
			},
		}
	}

	embedded := ing.embed(ctx, entries)
	if span != nil {
		span.SetAttr(
			docsift.IntAttr("ingest.chunks", len(entries)),
			docsift.BoolAttr("ingest.embedded", embedded),
		)
	}

	if err := ing.index.Add(ctx, entries); err != nil {
		if span != nil {
			span.Error(err)
		}
		return docsift.IngestResult{}, fmt.Errorf("index add: %w", err)
	}

	return docsift.IngestResult{
		DocumentID: doc.ID,
		ChunkCount: len(entries),
		Embedded:   embedded,
	}, nil
}

// Remove evicts all indexed entries for the document id.
func (ing *Ingestor) Remove(ctx context.Context, documentID string) error {
	unlock := ing.lockDocument(documentID)
	defer unlock()
	return ing.index.Remove(ctx, documentID)
}

// embed attaches vectors to entries in batches. It reports whether vectors
// were stored: any failure discards all vectors obtained so far, so entries
// either all carry vectors or none do.
func (ing *Ingestor) embed(ctx context.Context, entries []docsift.Entry) bool {
	if ing.embedding == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, ing.timeout)
	defer cancel()

	vectors := make([][]float32, 0, len(entries))
	for i := 0; i < len(entries); i += ing.batchSize {
		end := i + ing.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = entries[j].Chunk.Text
		}

		embs, err := ing.embedding.Embed(ctx, texts)
		if err != nil || len(embs) != len(texts) {
			ing.logger.Warn("embedding unavailable, indexing chunks without vectors",
				"provider", ing.embedding.Name(),
				"batch", i/ing.batchSize,
				"error", err)
			return false
		}
		vectors = append(vectors, embs...)
	}

	for i := range entries {
		entries[i].Vector = vectors[i]
	}
	return true
}

// lockDocument acquires the per-document lock and returns its release func.
func (ing *Ingestor) lockDocument(id string) func() {
	ing.mu.Lock()
	l, ok := ing.inUse[id]
	if !ok {
		l = &docLock{}
		ing.inUse[id] = l
	}
	l.refs++
	ing.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		ing.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ing.inUse, id)
		}
		ing.mu.Unlock()
	}
}

func (ing *Ingestor) startSpan(ctx context.Context, name string, attrs ...docsift.SpanAttr) (context.Context, docsift.Span) {
	if ing.tracer == nil {
		return ctx, nil
	}
	return ing.tracer.Start(ctx, name, attrs...)
}

func (ing *Ingestor) endSpan(span docsift.Span) {
	if span != nil {
		span.End()
	}
}
