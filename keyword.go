package docsift

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// KeywordMatcher scores chunks by lexical overlap with a query. It makes no
// external calls — pure in-memory computation — so it stays available when
// the embedding provider is down.
//
// Score = occurrences of distinct query terms in the chunk, divided by the
// chunk's token count. Tokenization is NFKC-normalized, lower-cased, and
// splits on any rune that is not a letter or digit, so scoring is
// deterministic and case-insensitive. Equal scores keep the chunks'
// original order (ingestion order, then chunk sequence).
type KeywordMatcher struct {
	stopWords map[string]struct{}
}

// KeywordOption configures a KeywordMatcher.
type KeywordOption func(*KeywordMatcher)

// WithoutStopWords disables stop-word filtering. By default common English
// stop words are ignored in both query and chunk terms.
func WithoutStopWords() KeywordOption {
	return func(m *KeywordMatcher) { m.stopWords = nil }
}

// NewKeywordMatcher creates a matcher with stop-word filtering enabled.
func NewKeywordMatcher(opts ...KeywordOption) *KeywordMatcher {
	m := &KeywordMatcher{stopWords: stopWords}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Search ranks entries by lexical overlap with query and returns at most k
// results with score > 0, sorted by descending score. k <= 0 returns nil.
func (m *KeywordMatcher) Search(query string, entries []Entry, k int) []ScoredChunk {
	if k <= 0 {
		return nil
	}

	terms := make(map[string]struct{})
	for _, t := range m.tokenize(query) {
		terms[t] = struct{}{}
	}
	if len(terms) == 0 {
		return nil
	}

	scored := make([]ScoredChunk, 0, len(entries))
	for _, e := range entries {
		tokens := m.tokenize(e.Chunk.Text)
		if len(tokens) == 0 {
			continue
		}
		hits := 0
		for _, t := range tokens {
			if _, ok := terms[t]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		scored = append(scored, ScoredChunk{
			Chunk: e.Chunk,
			Score: float32(hits) / float32(len(tokens)),
		})
	}

	// Stable sort keeps original entry order on equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// tokenize lower-cases and NFKC-normalizes s, splitting on anything that is
// not a letter or digit. Stop words are dropped when filtering is enabled.
func (m *KeywordMatcher) tokenize(s string) []string {
	s = norm.NFKC.String(strings.ToLower(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if m.stopWords == nil {
		return fields
	}
	out := fields[:0]
	for _, f := range fields {
		if _, ok := m.stopWords[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// stopWords is a small English stop-word list. Kept short on purpose: the
// matcher is a fallback ranker, not a full-text engine.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {},
	"were": {}, "what": {}, "which": {}, "will": {}, "with": {},
}
