package ingest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/docsift/docsift"
)

// tokens generates n distinct whitespace-separated tokens.
func tokens(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("t%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewTokenChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ChunkerOption
		wantErr bool
	}{
		{"defaults", nil, false},
		{"custom valid", []ChunkerOption{WithWindowTokens(100), WithOverlapTokens(10)}, false},
		{"zero overlap", []ChunkerOption{WithOverlapTokens(0)}, false},
		{"zero window", []ChunkerOption{WithWindowTokens(0)}, true},
		{"negative window", []ChunkerOption{WithWindowTokens(-5)}, true},
		{"negative overlap", []ChunkerOption{WithOverlapTokens(-1)}, true},
		{"overlap equals window", []ChunkerOption{WithWindowTokens(50), WithOverlapTokens(50)}, true},
		{"overlap exceeds window", []ChunkerOption{WithWindowTokens(50), WithOverlapTokens(60)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenChunker(tt.opts...)
			if tt.wantErr {
				var cfgErr *docsift.ErrConfig
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected *docsift.ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c, _ := NewTokenChunker()
	if got := c.Chunk(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := c.Chunk("   \n\t  "); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

func TestChunk_ShortInputSingleWindow(t *testing.T) {
	c, _ := NewTokenChunker()
	got := c.Chunk(tokens(512))
	if len(got) != 1 {
		t.Fatalf("expected 1 window for input of exactly window size, got %d", len(got))
	}
	if got[0].Start != 0 || got[0].End != 512 {
		t.Errorf("span = [%d,%d), want [0,512)", got[0].Start, got[0].End)
	}

	got = c.Chunk("just a few words")
	if len(got) != 1 {
		t.Fatalf("expected 1 window, got %d", len(got))
	}
	if got[0].Text != "just a few words" {
		t.Errorf("text = %q", got[0].Text)
	}
}

func TestChunk_DefaultWindowsOver1000Tokens(t *testing.T) {
	c, _ := NewTokenChunker()
	got := c.Chunk(tokens(1000))

	want := []struct{ start, end int }{
		{0, 512},
		{462, 974},
		{924, 1000},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d windows, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Start != w.start || got[i].End != w.end {
			t.Errorf("window %d span = [%d,%d), want [%d,%d)",
				i, got[i].Start, got[i].End, w.start, w.end)
		}
	}
}

func TestChunk_SpansTile(t *testing.T) {
	c, err := NewTokenChunker(WithWindowTokens(10), WithOverlapTokens(3))
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 9, 10, 11, 25, 100} {
		text := tokens(n)
		windows := c.Chunk(text)
		if len(windows) == 0 {
			t.Fatalf("n=%d: no windows", n)
		}

		if windows[0].Start != 0 {
			t.Errorf("n=%d: first window starts at %d", n, windows[0].Start)
		}
		if last := windows[len(windows)-1]; last.End != n {
			t.Errorf("n=%d: last window ends at %d", n, last.End)
		}
		for i := 1; i < len(windows); i++ {
			if windows[i-1].End-3 != windows[i].Start {
				t.Errorf("n=%d: window %d starts at %d, want %d",
					n, i, windows[i].Start, windows[i-1].End-3)
			}
		}

		// Dropping each window's leading overlap reconstructs the input.
		all := strings.Fields(text)
		var rebuilt []string
		for i, w := range windows {
			fields := strings.Fields(w.Text)
			if i > 0 {
				fields = fields[3:]
			}
			rebuilt = append(rebuilt, fields...)
		}
		if strings.Join(rebuilt, " ") != strings.Join(all, " ") {
			t.Errorf("n=%d: reconstruction mismatch", n)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, _ := NewTokenChunker(WithWindowTokens(8), WithOverlapTokens(2))
	text := tokens(50)
	a := c.Chunk(text)
	b := c.Chunk(text)
	if len(a) != len(b) {
		t.Fatalf("different window counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("window %d differs between runs", i)
		}
	}
}

func TestChunk_NoTrailingOverlapOnlyWindow(t *testing.T) {
	// 20 tokens, window 10, overlap 3, stride 7: windows [0,10) [7,17) [14,20).
	// A naive loop would add [21,...) past the end; the final short window
	// must end the sequence.
	c, _ := NewTokenChunker(WithWindowTokens(10), WithOverlapTokens(3))
	got := c.Chunk(tokens(20))
	if len(got) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(got))
	}
	if got[2].Start != 14 || got[2].End != 20 {
		t.Errorf("last span = [%d,%d), want [14,20)", got[2].Start, got[2].End)
	}
}
