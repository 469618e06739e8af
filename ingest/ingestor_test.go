package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/docsift/docsift"
	"github.com/docsift/docsift/index/memory"
)

// fakeEmbedding returns a constant vector per text, or fails after failAfter
// successful calls (-1 = never fail).
type fakeEmbedding struct {
	mu        sync.Mutex
	dims      int
	calls     int
	failAfter int
}

func newFakeEmbedding(dims int) *fakeEmbedding {
	return &fakeEmbedding{dims: dims, failAfter: -1}
}

func (f *fakeEmbedding) Name() string    { return "fake" }
func (f *fakeEmbedding) Dimensions() int { return f.dims }
func (f *fakeEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && f.calls >= f.failAfter {
		return nil, &docsift.ErrUnavailable{Provider: "fake", Err: errors.New("down")}
	}
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dims)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func TestIngest_ChunksAndEmbeds(t *testing.T) {
	ix := memory.New(2)
	ing := New(ix, newFakeEmbedding(2))

	res, err := ing.Ingest(context.Background(), docsift.Document{Content: tokens(1000)})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if res.DocumentID == "" {
		t.Error("expected generated document id")
	}
	if res.ChunkCount != 3 {
		t.Errorf("chunk count = %d, want 3", res.ChunkCount)
	}
	if !res.Embedded {
		t.Error("expected Embedded=true")
	}

	entries, err := ix.Chunks(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 indexed entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Chunk.Seq != i {
			t.Errorf("entry %d has seq %d", i, e.Chunk.Seq)
		}
		if e.Vector == nil {
			t.Errorf("entry %d missing vector", i)
		}
	}
}

func TestIngest_KeepsExplicitID(t *testing.T) {
	ix := memory.New(2)
	ing := New(ix, newFakeEmbedding(2))

	res, err := ing.Ingest(context.Background(), docsift.Document{ID: "doc-7", Content: "short text"})
	if err != nil {
		t.Fatal(err)
	}
	if res.DocumentID != "doc-7" {
		t.Errorf("document id = %q", res.DocumentID)
	}
}

func TestIngest_ProviderDownRetainsChunks(t *testing.T) {
	ix := memory.New(2)
	provider := newFakeEmbedding(2)
	provider.failAfter = 0
	ing := New(ix, provider)

	res, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "gradient descent optimizer overview"})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if res.Embedded {
		t.Error("expected Embedded=false")
	}
	if res.ChunkCount != 1 {
		t.Errorf("chunk count = %d", res.ChunkCount)
	}

	// Chunks are indexed without vectors and keyword search still answers.
	entries, err := ix.Chunks(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Vector != nil {
		t.Fatalf("expected 1 vectorless entry, got %+v", entries)
	}
	hits := docsift.NewKeywordMatcher().Search("gradient descent", entries, 5)
	if len(hits) != 1 {
		t.Errorf("expected keyword hit on retained chunk, got %d", len(hits))
	}
}

func TestIngest_PartialBatchFailureStoresNoVectors(t *testing.T) {
	ix := memory.New(2)
	provider := newFakeEmbedding(2)
	provider.failAfter = 1 // first batch succeeds, second fails

	c, _ := NewTokenChunker(WithWindowTokens(2), WithOverlapTokens(0))
	ing := New(ix, provider, WithBatchSize(1), WithChunker(c))

	res, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "a b c d e f"})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if res.Embedded {
		t.Error("expected Embedded=false after partial failure")
	}

	entries, _ := ix.Chunks(context.Background(), nil)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Vector != nil {
			t.Error("expected no vectors stored after partial batch failure")
		}
	}
}

func TestIngest_EmptyDocumentEvictsPrevious(t *testing.T) {
	ix := memory.New(2)
	ing := New(ix, newFakeEmbedding(2))

	if _, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "some content here"}); err != nil {
		t.Fatal(err)
	}
	res, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "   "})
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkCount != 0 {
		t.Errorf("chunk count = %d", res.ChunkCount)
	}
	if n, _ := ix.Len(context.Background()); n != 0 {
		t.Errorf("expected empty index after re-ingesting emptied document, got %d entries", n)
	}
}

func TestIngest_ReplaceIsIdempotent(t *testing.T) {
	ix := memory.New(2)
	ing := New(ix, newFakeEmbedding(2))

	for i := 0; i < 3; i++ {
		if _, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "same content each time"}); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := ix.Len(context.Background()); n != 1 {
		t.Errorf("expected 1 entry after repeated ingest, got %d", n)
	}
}

func TestRemove(t *testing.T) {
	ix := memory.New(2)
	ing := New(ix, newFakeEmbedding(2))

	if _, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "content"}); err != nil {
		t.Fatal(err)
	}
	if err := ing.Remove(context.Background(), "d1"); err != nil {
		t.Fatal(err)
	}
	if n, _ := ix.Len(context.Background()); n != 0 {
		t.Errorf("expected empty index after remove, got %d entries", n)
	}

	// Removing an unknown id is a no-op.
	if err := ing.Remove(context.Background(), "missing"); err != nil {
		t.Errorf("remove of unknown id returned %v", err)
	}
}

func TestIngest_ConcurrentSameDocument(t *testing.T) {
	ix := memory.New(2)
	ing := New(ix, newFakeEmbedding(2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ing.Ingest(context.Background(), docsift.Document{ID: "d1", Content: "contended document body"})
			if err != nil {
				t.Errorf("Ingest returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := ix.Len(context.Background()); n != 1 {
		t.Errorf("expected 1 entry after concurrent ingests of one id, got %d", n)
	}
}
