// Package indexer orchestrates chunking, embedding, and storage for one capture.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/models"
	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/vector"
	"go.uber.org/zap"
)

// ErrDocumentDegraded is returned when a capture's old chunks were removed but
// the new generation could not be fully written. Re-submitting the same
// capture repairs the state: the remaining old slots are replaced again.
var ErrDocumentDegraded = errors.New("document degraded: previous chunks removed, new chunks not fully written")

// Indexer is the write path: it chunks a capture, embeds the chunks in one
// batch, and swaps the page's generation in the vector index and the metadata
// store. At most one capture mutates the pair at a time.
type Indexer struct {
	storage         storage.Storage
	embedder        embedding.Embedder
	index           vector.Index
	chunker         Chunker
	replaceRevisits bool
	mu              sync.Mutex
	logger          *zap.Logger // optional; when set, logs debug events
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a logger for debug output (capture indexed, chunks replaced, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithoutRevisitReplacement restores the legacy behavior of appending every
// capture as new chunks, never removing a URL's previous generation.
func WithoutRevisitReplacement() Option {
	return func(idx *Indexer) { idx.replaceRevisits = false }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	index vector.Index,
	chunker Chunker,
	opts ...Option,
) *Indexer {
	idx := &Indexer{
		storage:         store,
		embedder:        embedder,
		index:           index,
		chunker:         chunker,
		replaceRevisits: true,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument indexes one capture: chunk, embed, replace the URL's previous
// generation, insert. Atomic at document granularity: an embedding failure
// writes nothing. Empty text is not an error; the capture is skipped with a
// zero count.
func (idx *Indexer) IndexDocument(ctx context.Context, doc *models.Document) (*models.IndexResult, error) {
	text := Preprocess(doc.Text)
	if text == "" {
		if idx.logger != nil {
			idx.logger.Debug("skipping capture with no extractable text", zap.String("url", doc.URL))
		}
		return &models.IndexResult{ChunksIndexed: 0}, nil
	}

	parts := idx.chunker.Chunk(text)
	texts := make([]string, len(parts))
	copy(texts, parts)

	// Embed before touching any state; failure here leaves both stores untouched.
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}

	captureID := uuid.New().String()
	chunks := make([]*models.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = &models.Chunk{
			URL:         doc.URL,
			Title:       doc.Title,
			Description: doc.Description,
			Text:        part,
			Index:       i,
			TotalChunks: len(parts),
			CapturedAt:  doc.CapturedAt,
			CaptureID:   captureID,
		}
	}

	// Remove-then-insert is one critical section: a concurrent search sees the
	// old generation or the new one, never a partial delete.
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var old []int64
	if idx.replaceRevisits {
		old, err = idx.storage.SlotsByURL(ctx, doc.URL)
		if err != nil {
			return nil, fmt.Errorf("look up previous chunks for %s: %w", doc.URL, err)
		}
		if len(old) > 0 {
			if err := idx.index.Remove(ctx, old); err != nil {
				return nil, fmt.Errorf("remove previous vectors for %s: %w", doc.URL, err)
			}
		}
	}

	slots, err := idx.index.Insert(ctx, vectors)
	if err != nil {
		if len(old) > 0 {
			return nil, fmt.Errorf("insert vectors: %v: %w", err, ErrDocumentDegraded)
		}
		return nil, fmt.Errorf("insert vectors: %w", err)
	}
	for i := range chunks {
		chunks[i].Slot = slots[i]
	}

	if err := idx.storage.ReplaceChunks(ctx, doc.URL, old, chunks); err != nil {
		// Compensate so the vector index does not carry slots without metadata.
		_ = idx.index.Remove(ctx, slots)
		if len(old) > 0 {
			return nil, fmt.Errorf("store chunks: %v: %w", err, ErrDocumentDegraded)
		}
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	if idx.logger != nil {
		idx.logger.Debug("capture indexed",
			zap.String("url", doc.URL),
			zap.Int("chunks", len(chunks)),
			zap.Int("replaced", len(old)),
		)
	}
	return &models.IndexResult{ChunksIndexed: len(chunks)}, nil
}
