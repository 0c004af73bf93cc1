// Package storage defines the chunk metadata store keyed by vector slot.
package storage

import (
	"context"

	"github.com/tadoru/tadoru/internal/models"
)

// Storage persists chunk metadata keyed by vector index slot. It is the
// metadata half of the persisted pair; the vector index file is the other.
type Storage interface {
	// ReplaceChunks atomically deletes the rows for removed slots and inserts
	// the new chunks of a capture, in one transaction. Either the whole
	// generation swap lands or none of it does.
	ReplaceChunks(ctx context.Context, url string, removed []int64, chunks []*models.Chunk) error

	// GetBySlots returns the chunks for the given slots, keyed by slot.
	// Slots with no row are simply absent from the map.
	GetBySlots(ctx context.Context, slots []int64) (map[int64]*models.Chunk, error)

	// SlotsByURL returns the slots of all live chunks for a URL, in chunk order.
	SlotsByURL(ctx context.Context, url string) ([]int64, error)

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountPages(ctx context.Context) (int64, error)

	Close() error
}
