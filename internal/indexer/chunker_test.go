package indexer

import (
	"errors"
	"strings"
	"testing"
)

func TestWindowChunker_Lengths(t *testing.T) {
	c, err := NewWindowChunker(500, 50)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("a", 1200)
	chunks := c.Chunk(text)
	// Starts advance by 450: offsets 0, 450, 900.
	wantLens := []int{500, 500, 300}
	if len(chunks) != len(wantLens) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantLens))
	}
	for i, ch := range chunks {
		if len(ch) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(ch), wantLens[i])
		}
	}
}

func TestWindowChunker_OverlapCoverage(t *testing.T) {
	c, _ := NewWindowChunker(10, 3)
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Chunk(text)
	step := 10 - 3
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		// Consecutive chunks overlap by exactly `overlap` characters.
		tail := string(prev[step:])
		head := string(cur[:len(prev)-step])
		if tail != head {
			t.Errorf("chunk %d overlap mismatch: %q vs %q", i, tail, head)
		}
	}
	// Windows cover the text with no gaps.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		rebuilt.WriteString(string([]rune(chunks[i])[3:]))
	}
	if rebuilt.String() != text {
		t.Errorf("chunks do not cover text: %q", rebuilt.String())
	}
}

func TestWindowChunker_Boundaries(t *testing.T) {
	c, _ := NewWindowChunker(100, 10)
	if got := c.Chunk(""); got != nil {
		t.Errorf("empty text should yield no chunks, got %v", got)
	}
	short := "short text"
	if got := c.Chunk(short); len(got) != 1 || got[0] != short {
		t.Errorf("text shorter than window: %v", got)
	}
	exact := strings.Repeat("x", 100)
	if got := c.Chunk(exact); len(got) != 1 || got[0] != exact {
		t.Errorf("text of exactly one window: %d chunks", len(got))
	}
}

func TestWindowChunker_Runes(t *testing.T) {
	c, _ := NewWindowChunker(3, 1)
	chunks := c.Chunk("日本語のテキスト")
	for i, ch := range chunks {
		if n := len([]rune(ch)); n > 3 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if !strings.Contains("日本語のテキスト", ch) {
			t.Errorf("chunk %d %q is not a substring; runes were split", i, ch)
		}
	}
}

func TestWindowChunker_Deterministic(t *testing.T) {
	c, _ := NewWindowChunker(7, 2)
	text := "the quick brown fox jumps over the lazy dog"
	first := c.Chunk(text)
	for run := 0; run < 5; run++ {
		again := c.Chunk(text)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks vs %d", run, len(again), len(first))
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d chunk %d differs", run, i)
			}
		}
	}
}

func TestNewWindowChunker_Invalid(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0}, {-5, 0}, {10, 10}, {10, 15}, {10, -1},
	}
	for _, tc := range cases {
		if _, err := NewWindowChunker(tc.size, tc.overlap); !errors.Is(err, ErrInvalidChunkConfig) {
			t.Errorf("size=%d overlap=%d: expected ErrInvalidChunkConfig, got %v", tc.size, tc.overlap, err)
		}
	}
}

func TestSentenceChunker_Chunk(t *testing.T) {
	c, err := NewSentenceChunker(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Chunk("One. Two! Three? Four. Five.")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks: %v", len(chunks), chunks)
	}
	if chunks[0] != "One. Two!" {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
	if chunks[2] != "Five." {
		t.Errorf("chunk 2 = %q", chunks[2])
	}
}

func TestSentenceChunker_NoTerminator(t *testing.T) {
	c, _ := NewSentenceChunker(3, 1)
	chunks := c.Chunk("no punctuation here")
	if len(chunks) != 1 || chunks[0] != "no punctuation here" {
		t.Errorf("chunks = %v", chunks)
	}
	if got := c.Chunk("   "); got != nil {
		t.Errorf("blank text should yield no chunks, got %v", got)
	}
}
