package docsift

import (
	"context"
	"errors"
	"testing"
)

// fakeProvider is an in-memory EmbeddingProvider for retriever tests.
type fakeProvider struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Dimensions() int { return len(f.vec) }
func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeIndex is an in-memory Index for retriever tests. Search results are
// canned; Chunks returns whatever was added.
type fakeIndex struct {
	entries    []Entry
	searchRes  []ScoredChunk
	searchErr  error
	lastK      int
	lastScope  []string
	removedIDs []string
}

func (f *fakeIndex) Add(_ context.Context, entries []Entry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, documentID string) error {
	f.removedIDs = append(f.removedIDs, documentID)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, k int, scope []string) ([]ScoredChunk, error) {
	f.lastK, f.lastScope = k, scope
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchRes, nil
}

func (f *fakeIndex) Chunks(_ context.Context, scope []string) ([]Entry, error) {
	f.lastScope = scope
	return f.entries, nil
}

func (f *fakeIndex) Len(_ context.Context) (int, error) { return len(f.entries), nil }

// snapshotIndex adds Snapshotter to fakeIndex, recording calls.
type snapshotIndex struct {
	fakeIndex
	savedPath  string
	loadedPath string
	saveErr    error
	loadErr    error
}

func (s *snapshotIndex) Save(path string) error {
	s.savedPath = path
	return s.saveErr
}

func (s *snapshotIndex) Load(path string) error {
	s.loadedPath = path
	return s.loadErr
}

func TestQuery_VectorMode(t *testing.T) {
	ix := &fakeIndex{searchRes: []ScoredChunk{
		{Chunk: Chunk{DocumentID: "d1", Seq: 0, Text: "relevant"}, Score: 0.9},
		{Chunk: Chunk{DocumentID: "d2", Seq: 1, Text: "less relevant"}, Score: 0.5},
	}}
	r := NewRetriever(ix, &fakeProvider{vec: []float32{1, 0}})

	results, err := r.Query(context.Background(), "question", WithTopK(2))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Mode != ModeVector {
			t.Errorf("expected vector mode, got %q", res.Mode)
		}
	}
	if results[0].Score < results[1].Score {
		t.Error("expected non-increasing scores")
	}
	if ix.lastK != 2 {
		t.Errorf("expected k=2 passed to index, got %d", ix.lastK)
	}
}

func TestQuery_FallbackWhenProviderDown(t *testing.T) {
	ix := &fakeIndex{entries: []Entry{
		{Chunk: Chunk{DocumentID: "d1", Seq: 0, Text: "gradient descent optimizer"}},
	}}
	provider := &fakeProvider{err: &ErrUnavailable{Provider: "fake", Err: errors.New("timeout")}}
	r := NewRetriever(ix, provider)

	results, err := r.Query(context.Background(), "gradient descent")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword result, got %d", len(results))
	}
	if results[0].Mode != ModeKeyword {
		t.Errorf("expected keyword mode, got %q", results[0].Mode)
	}
}

func TestQuery_FallbackWrapsUntypedEmbedError(t *testing.T) {
	ix := &fakeIndex{entries: []Entry{
		{Chunk: Chunk{DocumentID: "d1", Seq: 0, Text: "some indexed text"}},
	}}
	r := NewRetriever(ix, &fakeProvider{err: errors.New("plain failure")})

	results, err := r.Query(context.Background(), "indexed text")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(results) == 0 || results[0].Mode != ModeKeyword {
		t.Fatalf("expected keyword fallback, got %v", results)
	}
}

func TestQuery_NilProviderUsesKeyword(t *testing.T) {
	ix := &fakeIndex{entries: []Entry{
		{Chunk: Chunk{DocumentID: "d1", Seq: 0, Text: "keyword only corpus"}},
	}}
	r := NewRetriever(ix, nil)

	results, err := r.Query(context.Background(), "corpus")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(results) != 1 || results[0].Mode != ModeKeyword {
		t.Fatalf("expected 1 keyword result, got %v", results)
	}
}

func TestQuery_EmptyVectorResultFallsBack(t *testing.T) {
	// Provider works but the index holds no vectors (ingested while the
	// provider was down). Keyword search still answers.
	ix := &fakeIndex{entries: []Entry{
		{Chunk: Chunk{DocumentID: "d1", Seq: 0, Text: "text without vector"}},
	}}
	r := NewRetriever(ix, &fakeProvider{vec: []float32{1, 0}})

	results, err := r.Query(context.Background(), "vector text")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(results) != 1 || results[0].Mode != ModeKeyword {
		t.Fatalf("expected keyword fallback on empty vector result, got %v", results)
	}
}

func TestQuery_IndexErrorPropagates(t *testing.T) {
	wantErr := errors.New("disk failure")
	ix := &fakeIndex{searchErr: wantErr}
	r := NewRetriever(ix, &fakeProvider{vec: []float32{1, 0}})

	_, err := r.Query(context.Background(), "question")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected index error surfaced, got %v", err)
	}
}

func TestQuery_InvalidK(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, &fakeProvider{vec: []float32{1, 0}})

	_, err := r.Query(context.Background(), "question", WithTopK(0))
	var cfgErr *ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ErrConfig, got %v", err)
	}
	if cfgErr.Param != "k" {
		t.Errorf("expected param k, got %q", cfgErr.Param)
	}
}

func TestQuery_ScopePassedThrough(t *testing.T) {
	ix := &fakeIndex{searchRes: []ScoredChunk{{Chunk: Chunk{DocumentID: "d1"}, Score: 1}}}
	r := NewRetriever(ix, &fakeProvider{vec: []float32{1, 0}})

	_, err := r.Query(context.Background(), "q", WithScope("d1", "d2"))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(ix.lastScope) != 2 || ix.lastScope[0] != "d1" {
		t.Errorf("expected scope [d1 d2], got %v", ix.lastScope)
	}
}

func TestRemoveDocument(t *testing.T) {
	ix := &fakeIndex{}
	r := NewRetriever(ix, nil)

	if err := r.RemoveDocument(context.Background(), "d1"); err != nil {
		t.Fatalf("RemoveDocument returned error: %v", err)
	}
	if len(ix.removedIDs) != 1 || ix.removedIDs[0] != "d1" {
		t.Errorf("expected remove delegated, got %v", ix.removedIDs)
	}
}

func TestSnapshot_NoopWithoutCapability(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, nil)

	if err := r.SaveSnapshot(context.Background(), "/tmp/x"); err != nil {
		t.Errorf("expected no-op save, got %v", err)
	}
	if err := r.LoadSnapshot(context.Background(), "/tmp/x"); err != nil {
		t.Errorf("expected no-op load, got %v", err)
	}
}

func TestSnapshot_Delegates(t *testing.T) {
	ix := &snapshotIndex{}
	r := NewRetriever(ix, nil)

	if err := r.SaveSnapshot(context.Background(), "/tmp/snap.json"); err != nil {
		t.Fatalf("SaveSnapshot returned error: %v", err)
	}
	if ix.savedPath != "/tmp/snap.json" {
		t.Errorf("save path = %q", ix.savedPath)
	}

	if err := r.LoadSnapshot(context.Background(), "/tmp/snap.json"); err != nil {
		t.Fatalf("LoadSnapshot returned error: %v", err)
	}
	if ix.loadedPath != "/tmp/snap.json" {
		t.Errorf("load path = %q", ix.loadedPath)
	}
}

func TestSnapshot_CorruptLoadSwallowed(t *testing.T) {
	ix := &snapshotIndex{loadErr: &ErrCorruptSnapshot{Path: "/tmp/bad", Err: errors.New("garbage")}}
	r := NewRetriever(ix, nil)

	if err := r.LoadSnapshot(context.Background(), "/tmp/bad"); err != nil {
		t.Errorf("expected corrupt snapshot swallowed, got %v", err)
	}
}

func TestSnapshot_WriteErrorSurfaces(t *testing.T) {
	ix := &snapshotIndex{saveErr: &ErrSnapshotWrite{Path: "/tmp/x", Err: errors.New("disk full")}}
	r := NewRetriever(ix, nil)

	err := r.SaveSnapshot(context.Background(), "/tmp/x")
	var writeErr *ErrSnapshotWrite
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *ErrSnapshotWrite, got %v", err)
	}
}
