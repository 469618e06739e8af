package docsift

import "testing"

func entry(docID string, seq int, text string) Entry {
	return Entry{Chunk: Chunk{DocumentID: docID, Seq: seq, Text: text}}
}

func TestKeywordSearch_RanksByOverlap(t *testing.T) {
	m := NewKeywordMatcher()
	entries := []Entry{
		entry("d1", 0, "neural networks process data"),
		entry("d1", 1, "cooking pasta requires boiling water"),
		entry("d2", 0, "neural networks learn representations of data"),
	}

	got := m.Search("neural networks", entries, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	for _, r := range got {
		if r.Score <= 0 {
			t.Errorf("expected positive score, got %v", r.Score)
		}
	}
	// d1/0 has 2 hits in 4 tokens (0.5); d2/0 has 2 hits in 6 tokens.
	if got[0].Chunk.DocumentID != "d1" || got[0].Chunk.Seq != 0 {
		t.Errorf("expected d1/0 first, got %s/%d", got[0].Chunk.DocumentID, got[0].Chunk.Seq)
	}
	if got[0].Score < got[1].Score {
		t.Error("expected non-increasing scores")
	}
}

func TestKeywordSearch_CaseAndPunctuationInsensitive(t *testing.T) {
	m := NewKeywordMatcher()
	entries := []Entry{entry("d1", 0, "Gradient descent, explained!")}

	got := m.Search("GRADIENT descent", entries, 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestKeywordSearch_TieKeepsEntryOrder(t *testing.T) {
	m := NewKeywordMatcher()
	entries := []Entry{
		entry("d2", 0, "token overlap here"),
		entry("d1", 0, "token overlap here"),
	}

	got := m.Search("token", entries, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Chunk.DocumentID != "d2" || got[1].Chunk.DocumentID != "d1" {
		t.Errorf("expected tie to keep entry order, got %s then %s",
			got[0].Chunk.DocumentID, got[1].Chunk.DocumentID)
	}
}

func TestKeywordSearch_RespectsK(t *testing.T) {
	m := NewKeywordMatcher()
	var entries []Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry("d1", i, "matching text"))
	}

	if got := m.Search("matching", entries, 3); len(got) != 3 {
		t.Errorf("expected 3 results, got %d", len(got))
	}
	if got := m.Search("matching", entries, 0); got != nil {
		t.Errorf("expected nil for k=0, got %v", got)
	}
}

func TestKeywordSearch_NoMatchesNoResults(t *testing.T) {
	m := NewKeywordMatcher()
	entries := []Entry{entry("d1", 0, "completely unrelated content")}

	if got := m.Search("quantum chromodynamics", entries, 5); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	if got := m.Search("", entries, 5); got != nil {
		t.Errorf("expected nil for empty query, got %v", got)
	}
}

func TestKeywordSearch_StopWordsIgnored(t *testing.T) {
	withStops := NewKeywordMatcher()
	entries := []Entry{entry("d1", 0, "the cat sat on the mat")}

	// "the" alone scores nothing with filtering enabled.
	if got := withStops.Search("the", entries, 5); len(got) != 0 {
		t.Errorf("expected stop-word-only query to match nothing, got %d results", len(got))
	}

	without := NewKeywordMatcher(WithoutStopWords())
	if got := without.Search("the", entries, 5); len(got) != 1 {
		t.Errorf("expected match with stop words disabled, got %d results", len(got))
	}
}

func TestKeywordSearch_UnicodeNormalization(t *testing.T) {
	m := NewKeywordMatcher()
	// Fullwidth "ｄａｔａ" normalizes to "data" under NFKC.
	entries := []Entry{entry("d1", 0, "ｄａｔａ pipelines")}

	if got := m.Search("data", entries, 5); len(got) != 1 {
		t.Errorf("expected NFKC-normalized match, got %d results", len(got))
	}
}
