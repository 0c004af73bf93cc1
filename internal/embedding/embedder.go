// Package embedding provides text embedding clients and decorators.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding backend cannot produce a
// result (backend down, model not loaded, malformed response). Transient:
// the caller may retry the whole document.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
