package docsift

// --- Domain types ---

// Document is a caller-owned unit of ingestion. The core derives chunks from
// Content and keeps provenance references only; it never persists the
// document body itself.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Source  string `json:"source"` // filename, URL, or arxiv id
	Content string `json:"content"`
}

// Chunk is a bounded span of a document's text. Start and End are token
// offsets into the document ([Start, End)); Seq is the chunk's position in
// ingestion order within its document. Chunks are immutable once created.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Seq        int    `json:"seq"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
}

// Entry is a chunk as stored by an Index: the chunk plus its embedding.
// Vector is nil when embedding was unavailable at ingest time; such entries
// are retained for keyword search and skipped by vector search.
type Entry struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector,omitempty"`
}

// ScoredChunk is a chunk with a relevance score. For vector search the score
// is cosine similarity in [-1, 1]; for keyword search it is a term-frequency
// overlap in [0, 1].
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Mode identifies which search strategy produced a result.
type Mode string

const (
	// ModeVector means the query was answered by embedding similarity.
	ModeVector Mode = "vector"
	// ModeKeyword means the query fell back to lexical overlap scoring.
	ModeKeyword Mode = "keyword"
)

// Result is a ranked query answer. Mode reports whether this result came
// from vector search or the keyword fallback; within one Query call all
// results share the same mode.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
	Mode  Mode    `json:"mode"`
}

// IngestResult holds the outcome of an ingest operation.
type IngestResult struct {
	DocumentID string
	ChunkCount int
	// Embedded reports whether chunk vectors were stored. False means the
	// embedding provider was unavailable and the chunks were indexed for
	// keyword search only.
	Embedded bool
}
