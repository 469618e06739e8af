package docsift

import "context"

// Index stores index entries and answers nearest-neighbor queries over them.
//
// All backends score by cosine similarity: vectors are L2-normalized on
// insert and at query time, and similarity is their inner product. Search is
// exact (brute-force or an exact-recall structure) — repeated queries with
// the same vector return the same ranking.
//
// Implementations must be safe for concurrent use: reads may run alongside
// writes for unrelated documents and always observe whole entries.
type Index interface {
	// Add inserts entries. Entries for a document id that is already indexed
	// replace the prior entries for that id (no duplicate accumulation).
	Add(ctx context.Context, entries []Entry) error

	// Remove evicts all entries for the document id. Removing an id that was
	// never added is a no-op.
	Remove(ctx context.Context, documentID string) error

	// Search returns up to k entries ranked by descending cosine similarity
	// to vector. Entries without vectors are skipped. A non-empty scope
	// restricts results to those document ids. Searching an empty index
	// returns an empty result; k <= 0 is an *ErrConfig.
	Search(ctx context.Context, vector []float32, k int, scope []string) ([]ScoredChunk, error)

	// Chunks returns all retained entries in insertion order, optionally
	// restricted to scope. The keyword fallback searches over this set, so
	// it includes entries whose embedding failed.
	Chunks(ctx context.Context, scope []string) ([]Entry, error)

	// Len reports the number of entries currently indexed.
	Len(ctx context.Context) (int, error)
}

// Snapshotter is an optional Index capability for single-file snapshot
// persistence. The in-memory backend implements it; durable backends
// (SQLite, Postgres) do not need to. Callers discover it via type assertion.
type Snapshotter interface {
	// Save writes the full index state to path, atomically: the snapshot is
	// written to a temp file in the same directory and renamed into place,
	// so a concurrent Load never observes a partial file. Failure is an
	// *ErrSnapshotWrite; the in-memory state is unaffected.
	Save(path string) error

	// Load replaces the index state with the snapshot at path. A missing
	// file leaves the index empty and returns nil — snapshots are
	// best-effort caching, not a source of truth. A corrupt or incompatible
	// snapshot also leaves the index empty and returns *ErrCorruptSnapshot
	// so the caller can log it.
	Load(path string) error
}
