package docsift

import "context"

// EmbeddingProvider abstracts text embedding.
//
// Embed performs remote I/O and must honor ctx for timeout and cancellation.
// Output vectors are index-aligned with the input texts. Vectors are not
// guaranteed byte-identical across time (the remote model may change);
// only vectors embedded against the same model are comparable.
//
// Implementations report transport, auth, and quota failures as
// *ErrUnavailable so the retriever can fall back to keyword search.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}
