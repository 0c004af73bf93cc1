// Package indexer provides text chunking and the capture indexing pipeline.
package indexer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidChunkConfig is returned for chunking parameters that cannot
// produce a valid window sequence. Fatal at startup.
var ErrInvalidChunkConfig = errors.New("invalid chunking configuration")

// Chunker splits text into an ordered sequence of strings for embedding.
// Implementations must be pure: identical input always yields an identical
// sequence, which keeps chunk counts stable across re-captures of
// unchanged pages.
type Chunker interface {
	Chunk(text string) []string
}

// WindowChunker splits text into overlapping fixed-size character windows.
// Windows are measured in runes so multi-byte characters are never split.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a window chunker. size is the window length in
// characters; each window starts size-overlap characters after the previous
// one. Requires size > 0 and 0 <= overlap < size.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got %d", ErrInvalidChunkConfig, overlap)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk returns the overlapping windows of text. The final window may be
// shorter than the configured size; it is never padded. Empty text yields
// no chunks; text no longer than one window yields exactly one chunk.
func (c *WindowChunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{text}
	}
	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// SentenceChunker groups whole sentences into chunks, overlapping by a fixed
// number of sentences. An alternative to the window strategy for pages whose
// prose should not be cut mid-sentence.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker creates a sentence chunker. Requires
// sentencesPerChunk > 0 and 0 <= overlapSentences < sentencesPerChunk.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) (*SentenceChunker, error) {
	if sentencesPerChunk <= 0 {
		return nil, fmt.Errorf("%w: sentences per chunk must be positive, got %d", ErrInvalidChunkConfig, sentencesPerChunk)
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		return nil, fmt.Errorf("%w: sentence overlap must be in [0, sentences per chunk), got %d", ErrInvalidChunkConfig, overlapSentences)
	}
	return &SentenceChunker{sentencesPerChunk: sentencesPerChunk, overlapSentences: overlapSentences}, nil
}

// Chunk splits text into sentence groups. Text with no sentence terminator is
// treated as a single sentence.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	var chunks []string
	for i := 0; i < len(sentences); {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
