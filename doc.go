// Package docsift is a local document retrieval core for Go.
//
// It turns raw document text into chunked, embedded, locally-indexed vectors
// and answers similarity queries against them, with a deterministic keyword
// fallback whenever the embedding backend is unavailable.
//
// # Quick Start
//
//	embedding := gemini.NewEmbedding(apiKey, "gemini-embedding-001", 768)
//	index := memory.New(embedding.Dimensions())
//
//	ing := ingest.New(index, embedding)
//	r := docsift.NewRetriever(index, embedding)
//
//	_, err := ing.Ingest(ctx, docsift.Document{
//		Title:   "attention.pdf",
//		Content: text,
//	})
//
//	results, err := r.Query(ctx, "what is multi-head attention?",
//		docsift.WithTopK(5))
//	for _, res := range results {
//		fmt.Println(res.Mode, res.Score, res.Chunk.Text)
//	}
//
// A query runs in vector mode when embeddings are reachable and falls back to
// keyword mode for that call otherwise; every result reports the mode that
// produced it. Ingestion is best-effort the same way: if embedding fails, the
// chunks are still indexed for keyword search and gain vectors on re-ingest.
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [EmbeddingProvider] — text-to-vector embedding (provider/gemini,
//     provider/openaicompat)
//   - [Index] — nearest-neighbor storage over chunk vectors (index/memory,
//     index/sqlite, index/postgres)
//   - [Snapshotter] — optional single-file persistence capability of an Index
//   - [Tracer] — optional tracing hook (observer package provides the
//     OTEL-backed implementation)
//
// The ingest package provides the token-window chunker and the end-to-end
// ingestion pipeline; the extract package converts PDF, DOCX, Markdown, and
// HTML files into the plain text this core consumes.
package docsift
