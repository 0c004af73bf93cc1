// Package vector provides slot-addressed vector storage and similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's dimensionality does not
// match the dimensionality the index was created with. Indicates
// embedding-model drift; fatal for indexing.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrInvalidTopK is returned by Search for a non-positive k.
var ErrInvalidTopK = errors.New("top_k must be positive")

// Index defines slot-addressed vector storage and nearest-neighbor search.
// Slots identify stored vectors and are never reused within an index lifetime,
// including across Save/Load.
type Index interface {
	Insert(ctx context.Context, vectors [][]float32) ([]int64, error)
	Remove(ctx context.Context, slots []int64) error
	Search(ctx context.Context, query []float32, topK int) ([]*Match, error)
	Size() int
	Dimensions() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// Match is a single search hit. Distance is squared Euclidean; smaller is closer.
type Match struct {
	Slot     int64
	Distance float64
}
