package docsift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// defaultTopK is used when a query does not set WithTopK.
const defaultTopK = 5

// Retriever is the query façade over an Index, an EmbeddingProvider, and the
// keyword fallback matcher. Each Query call decides its own mode: vector
// search when the provider answers, keyword search otherwise. The mode is
// never pinned — a provider outage degrades exactly one call at a time.
//
// A Retriever is an explicitly constructed, caller-owned object. Logger and
// tracer are injected; there is no package-level state.
type Retriever struct {
	index     Index
	embedding EmbeddingProvider
	keyword   *KeywordMatcher
	logger    *slog.Logger
	tracer    Tracer
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a structured logger. If not set, logs are discarded.
func WithLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithTracer sets an optional tracer for query and snapshot spans.
func WithTracer(t Tracer) RetrieverOption {
	return func(r *Retriever) { r.tracer = t }
}

// WithKeywordMatcher replaces the default keyword fallback matcher.
func WithKeywordMatcher(m *KeywordMatcher) RetrieverOption {
	return func(r *Retriever) { r.keyword = m }
}

// NewRetriever creates a Retriever. embedding may be nil, in which case every
// query runs in keyword mode.
func NewRetriever(index Index, embedding EmbeddingProvider, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		index:     index,
		embedding: embedding,
		keyword:   NewKeywordMatcher(),
		logger:    slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// QueryOption configures a single Query call.
type QueryOption func(*queryConfig)

type queryConfig struct {
	topK  int
	scope []string
}

// WithTopK sets the maximum number of results (default 5).
func WithTopK(k int) QueryOption {
	return func(c *queryConfig) { c.topK = k }
}

// WithScope restricts results to the given document ids. Without it the
// query searches all indexed chunks.
func WithScope(documentIDs ...string) QueryOption {
	return func(c *queryConfig) { c.scope = documentIDs }
}

// Query returns up to k chunks ranked by relevance to text. It embeds the
// query and searches the index; if the embedding provider is unavailable or
// the index holds no vectors, it falls back to keyword search over the
// retained chunk text for this call only. Every result carries the mode
// that produced it.
//
// Embedding failures never surface as errors — the only errors a caller can
// see are its own (k <= 0) or index I/O failures.
func (r *Retriever) Query(ctx context.Context, text string, opts ...QueryOption) ([]Result, error) {
	cfg := queryConfig{topK: defaultTopK}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.topK <= 0 {
		return nil, &ErrConfig{Param: "k", Reason: fmt.Sprintf("must be positive, got %d", cfg.topK)}
	}

	ctx, span := r.startSpan(ctx, "retriever.query",
		IntAttr("query.top_k", cfg.topK),
		IntAttr("query.scope_size", len(cfg.scope)),
	)
	defer r.endSpan(span)

	scored, err := r.vectorSearch(ctx, text, cfg)
	if err == nil && len(scored) > 0 {
		if span != nil {
			span.SetAttr(StringAttr("query.mode", string(ModeVector)))
		}
		return toResults(scored, ModeVector), nil
	}
	if err != nil {
		// Unavailable provider is the expected degraded path; anything else
		// from the index is a real failure.
		var unavail *ErrUnavailable
		if !errors.As(err, &unavail) {
			if span != nil {
				span.Error(err)
			}
			return nil, err
		}
		r.logger.Warn("embedding unavailable, falling back to keyword search",
			"provider", unavail.Provider, "error", unavail.Err)
	}

	if span != nil {
		span.SetAttr(StringAttr("query.mode", string(ModeKeyword)))
	}
	return r.keywordSearch(ctx, text, cfg)
}

// vectorSearch embeds the query and searches the index. An empty result with
// nil error means the index holds no matching vectors; the caller falls back.
func (r *Retriever) vectorSearch(ctx context.Context, text string, cfg queryConfig) ([]ScoredChunk, error) {
	if r.embedding == nil {
		return nil, &ErrUnavailable{Provider: "none", Err: errors.New("no embedding provider configured")}
	}

	embs, err := r.embedding.Embed(ctx, []string{text})
	if err != nil {
		var unavail *ErrUnavailable
		if errors.As(err, &unavail) {
			return nil, err
		}
		return nil, &ErrUnavailable{Provider: r.embedding.Name(), Err: err}
	}
	if len(embs) == 0 {
		return nil, &ErrUnavailable{Provider: r.embedding.Name(), Err: errors.New("no embedding returned")}
	}

	return r.index.Search(ctx, embs[0], cfg.topK, cfg.scope)
}

// keywordSearch ranks retained chunk text by lexical overlap. It never
// performs external calls, so it works while the provider is down.
func (r *Retriever) keywordSearch(ctx context.Context, text string, cfg queryConfig) ([]Result, error) {
	entries, err := r.index.Chunks(ctx, cfg.scope)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	return toResults(r.keyword.Search(text, entries, cfg.topK), ModeKeyword), nil
}

// RemoveDocument evicts all indexed chunks for the document id. Removing an
// unknown id is a no-op.
func (r *Retriever) RemoveDocument(ctx context.Context, documentID string) error {
	return r.index.Remove(ctx, documentID)
}

// SaveSnapshot persists the index to a single file when the backend supports
// snapshots. Durable backends (SQLite, Postgres) persist on their own; for
// those this is a no-op. A failed write is returned as *ErrSnapshotWrite —
// the in-memory index is intact and the caller can retry later.
func (r *Retriever) SaveSnapshot(ctx context.Context, path string) error {
	s, ok := r.index.(Snapshotter)
	if !ok {
		return nil
	}
	_, span := r.startSpan(ctx, "retriever.snapshot.save", StringAttr("snapshot.path", path))
	defer r.endSpan(span)

	if err := s.Save(path); err != nil {
		if span != nil {
			span.Error(err)
		}
		return err
	}
	return nil
}

// LoadSnapshot restores the index from a snapshot file when the backend
// supports snapshots. A missing file leaves the index empty; a corrupt
// snapshot is discarded, logged, and swallowed — the retriever starts from
// an empty index rather than failing.
func (r *Retriever) LoadSnapshot(ctx context.Context, path string) error {
	s, ok := r.index.(Snapshotter)
	if !ok {
		return nil
	}
	_, span := r.startSpan(ctx, "retriever.snapshot.load", StringAttr("snapshot.path", path))
	defer r.endSpan(span)

	err := s.Load(path)
	if err == nil {
		return nil
	}
	var corrupt *ErrCorruptSnapshot
	if errors.As(err, &corrupt) {
		r.logger.Warn("discarding corrupt index snapshot",
			"path", corrupt.Path, "error", corrupt.Err)
		if span != nil {
			span.Event("snapshot.discarded", StringAttr("snapshot.path", corrupt.Path))
		}
		return nil
	}
	if span != nil {
		span.Error(err)
	}
	return err
}

func (r *Retriever) startSpan(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	if r.tracer == nil {
		return ctx, nil
	}
	return r.tracer.Start(ctx, name, attrs...)
}

func (r *Retriever) endSpan(span Span) {
	if span != nil {
		span.End()
	}
}

func toResults(scored []ScoredChunk, mode Mode) []Result {
	results := make([]Result, len(scored))
	for i, sc := range scored {
		results[i] = Result{Chunk: sc.Chunk, Score: sc.Score, Mode: mode}
	}
	return results
}
