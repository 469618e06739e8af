package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/docsift/docsift"
)

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunker replaces the default chunker.
func WithChunker(c *TokenChunker) Option {
	return func(ing *Ingestor) { ing.chunker = c }
}

// WithBatchSize sets the number of chunks per Embed() call (default 64).
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.batchSize = n
		}
	}
}

// WithEmbedTimeout bounds the total embedding time for one ingest
// (default 30s). On expiry the chunks are indexed without vectors.
func WithEmbedTimeout(d time.Duration) Option {
	return func(ing *Ingestor) {
		if d > 0 {
			ing.timeout = d
		}
	}
}

// WithLogger sets a structured logger. If not set, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// WithTracer sets an optional tracer for ingest spans.
func WithTracer(t docsift.Tracer) Option {
	return func(ing *Ingestor) { ing.tracer = t }
}

// discardHandler is a slog.Handler that drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
