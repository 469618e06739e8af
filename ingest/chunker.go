// Package ingest provides the chunker and the end-to-end ingestion pipeline:
// split text into token windows, embed them best-effort, and add the entries
// to an index. Embedding failures never abort an ingest — chunks without
// vectors are still indexed so keyword search keeps working.
package ingest

import (
	"fmt"
	"strings"

	"github.com/docsift/docsift"
)

// Default chunking configuration.
const (
	DefaultWindowTokens  = 512
	DefaultOverlapTokens = 50
)

// Window is one chunk-sized slice of a document's token sequence. Start and
// End are token offsets, [Start, End); Text is the window's tokens joined
// with single spaces.
type Window struct {
	Text  string
	Start int
	End   int
}

// ChunkerOption configures a TokenChunker.
type ChunkerOption func(*TokenChunker)

// WithWindowTokens sets the window size in tokens (default 512).
func WithWindowTokens(n int) ChunkerOption {
	return func(c *TokenChunker) { c.window = n }
}

// WithOverlapTokens sets the overlap between adjacent windows in tokens
// (default 50). Must be smaller than the window.
func WithOverlapTokens(n int) ChunkerOption {
	return func(c *TokenChunker) { c.overlap = n }
}

// TokenChunker splits text into overlapping fixed-size token windows.
//
// A token is a whitespace-delimited field, so chunk boundaries are
// reproducible across runs for the same input and configuration. Adjacent
// windows tile the token sequence: each window starts overlap tokens before
// the previous one ends; only the final window may be shorter.
type TokenChunker struct {
	window  int
	overlap int
}

// NewTokenChunker creates a TokenChunker. It returns *docsift.ErrConfig when
// the window is not positive or the overlap is negative or not smaller than
// the window.
func NewTokenChunker(opts ...ChunkerOption) (*TokenChunker, error) {
	c := &TokenChunker{window: DefaultWindowTokens, overlap: DefaultOverlapTokens}
	for _, o := range opts {
		o(c)
	}
	if c.window <= 0 {
		return nil, &docsift.ErrConfig{Param: "window", Reason: fmt.Sprintf("must be positive, got %d", c.window)}
	}
	if c.overlap < 0 || c.overlap >= c.window {
		return nil, &docsift.ErrConfig{Param: "overlap", Reason: fmt.Sprintf("must be in [0, window), got %d with window %d", c.overlap, c.window)}
	}
	return c, nil
}

// Chunk splits text into windows. Empty or all-whitespace input yields no
// windows; input of at most one window's tokens yields exactly one window
// spanning the whole input.
func (c *TokenChunker) Chunk(text string) []Window {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.window - c.overlap
	var windows []Window
	for start := 0; start < len(tokens); start += stride {
		end := start + c.window
		if end > len(tokens) {
			end = len(tokens)
		}
		windows = append(windows, Window{
			Text:  strings.Join(tokens[start:end], " "),
			Start: start,
			End:   end,
		})
		if end == len(tokens) {
			break
		}
	}
	return windows
}
