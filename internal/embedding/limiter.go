package embedding

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// LimitedEmbedder bounds the number of simultaneous calls into the wrapped
// embedder. The embedding backend is shared across requests; without a bound,
// a burst of captures could exhaust it.
type LimitedEmbedder struct {
	inner Embedder
	sem   *semaphore.Weighted
}

// NewLimitedEmbedder wraps inner with a concurrency bound of maxConcurrent.
func NewLimitedEmbedder(inner Embedder, maxConcurrent int) *LimitedEmbedder {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &LimitedEmbedder{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Embed acquires a permit, then delegates.
func (e *LimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	return e.inner.Embed(ctx, text)
}

// EmbedBatch acquires a single permit for the whole batch: a document's
// chunks are one unit of backend work.
func (e *LimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	return e.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped embedder's dimension.
func (e *LimitedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (e *LimitedEmbedder) Close() error {
	return e.inner.Close()
}
