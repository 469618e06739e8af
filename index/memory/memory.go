// Package memory implements docsift.Index as an in-process, exact
// nearest-neighbor structure with optional single-file snapshot persistence.
//
// Vectors are L2-normalized on insert and at query time, and similarity is
// their inner product — i.e. cosine similarity. Search is brute-force and
// exact: the same query vector always produces the same ranking, with ties
// broken by insertion order.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docsift/docsift"
)

// Index is an in-memory docsift.Index. It is safe for concurrent use: a
// RWMutex guards the entry list, so reads observe a consistent snapshot and
// never a half-written entry.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []docsift.Entry
}

var _ docsift.Index = (*Index)(nil)
var _ docsift.Snapshotter = (*Index)(nil)

// New creates an empty index for vectors of the given dimension.
// dim <= 0 accepts vectors of any single consistent dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Add inserts entries, first evicting all prior entries for every document
// id present in the batch (replace semantics). Vectors are copied and
// normalized; entries without vectors are kept for keyword search.
func (ix *Index) Add(_ context.Context, entries []docsift.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make(map[string]struct{})
	for _, e := range entries {
		if e.Vector != nil && ix.dim > 0 && len(e.Vector) != ix.dim {
			return &docsift.ErrConfig{
				Param:  "vector",
				Reason: fmt.Sprintf("dimension %d, index expects %d", len(e.Vector), ix.dim),
			}
		}
		ids[e.Chunk.DocumentID] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.evictLocked(ids)
	for _, e := range entries {
		ix.entries = append(ix.entries, docsift.Entry{
			Chunk:  e.Chunk,
			Vector: normalized(e.Vector),
		})
	}
	return nil
}

// Remove evicts all entries for the document id; no-op if absent.
func (ix *Index) Remove(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.evictLocked(map[string]struct{}{documentID: {}})
	return nil
}

// evictLocked drops entries belonging to any of the given document ids,
// preserving the order of the survivors. Caller holds the write lock.
func (ix *Index) evictLocked(ids map[string]struct{}) {
	kept := ix.entries[:0]
	for _, e := range ix.entries {
		if _, ok := ids[e.Chunk.DocumentID]; !ok {
			kept = append(kept, e)
		}
	}
	// Zero the tail so evicted vectors can be collected.
	for i := len(kept); i < len(ix.entries); i++ {
		ix.entries[i] = docsift.Entry{}
	}
	ix.entries = kept
}

// Search returns up to k chunks ranked by descending cosine similarity.
// Entries without vectors are skipped; an empty index yields an empty
// result. k <= 0 is a caller bug.
func (ix *Index) Search(_ context.Context, vector []float32, k int, scope []string) ([]docsift.ScoredChunk, error) {
	if k <= 0 {
		return nil, &docsift.ErrConfig{Param: "k", Reason: fmt.Sprintf("must be positive, got %d", k)}
	}
	if ix.dim > 0 && len(vector) != ix.dim {
		return nil, &docsift.ErrConfig{
			Param:  "vector",
			Reason: fmt.Sprintf("dimension %d, index expects %d", len(vector), ix.dim),
		}
	}
	query := normalized(vector)
	inScope := scopeSet(scope)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := make([]docsift.ScoredChunk, 0, len(ix.entries))
	for _, e := range ix.entries {
		if e.Vector == nil {
			continue
		}
		if inScope != nil {
			if _, ok := inScope[e.Chunk.DocumentID]; !ok {
				continue
			}
		}
		scored = append(scored, docsift.ScoredChunk{Chunk: e.Chunk, Score: dot(query, e.Vector)})
	}

	// Stable sort: equal scores keep insertion order.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Chunks returns all entries in insertion order, optionally scoped.
func (ix *Index) Chunks(_ context.Context, scope []string) ([]docsift.Entry, error) {
	inScope := scopeSet(scope)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]docsift.Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		if inScope != nil {
			if _, ok := inScope[e.Chunk.DocumentID]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Len reports the number of entries currently indexed.
func (ix *Index) Len(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

func scopeSet(scope []string) map[string]struct{} {
	if len(scope) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		set[id] = struct{}{}
	}
	return set
}

// normalized returns an L2-normalized copy of v, or nil for a nil or
// zero-magnitude vector.
func normalized(v []float32) []float32 {
	if v == nil {
		return nil
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
