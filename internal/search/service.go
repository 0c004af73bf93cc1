// Package search answers semantic queries over the indexed history.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/models"
	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/vector"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for queries that are empty after trimming.
var ErrEmptyQuery = errors.New("empty query")

// Service is the read path: embed the query, find the nearest chunks, join
// their metadata. It never mutates the index or the store.
type Service struct {
	embedder    embedding.Embedder
	index       vector.Index
	storage     storage.Storage
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// NewService creates a search service. defaultTopK is used when a request
// leaves top_k unset; maxTopK caps every request.
func NewService(
	embedder embedding.Embedder,
	index vector.Index,
	store storage.Storage,
	defaultTopK, maxTopK int,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:    embedder,
		index:       index,
		storage:     store,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		logger:      logger,
	}
}

// Search returns the topK nearest chunks to the query, closest first.
// topK of zero means the configured default; values above the configured
// maximum are clamped. An empty index yields an empty result, not an error.
func (s *Service) Search(ctx context.Context, query string, topK int) (*models.SearchResponse, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK < 0 {
		return nil, fmt.Errorf("%w: %d", vector.ErrInvalidTopK, topK)
	}
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	slots := make([]int64, len(matches))
	for i, m := range matches {
		slots[i] = m.Slot
	}
	chunks, err := s.storage.GetBySlots(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("load chunk metadata: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(matches))
	for _, m := range matches {
		chunk, ok := chunks[m.Slot]
		if !ok {
			// Index and store disagree; skip rather than fail the query.
			s.logger.Warn("slot has no metadata, skipping result", zap.Int64("slot", m.Slot))
			continue
		}
		results = append(results, &models.SearchResult{
			URL:         chunk.URL,
			Title:       chunk.Title,
			Description: chunk.Description,
			ChunkText:   chunk.Text,
			ChunkIndex:  chunk.Index,
			TotalChunks: chunk.TotalChunks,
			Timestamp:   chunk.CapturedAt,
			Distance:    m.Distance,
		})
	}

	return &models.SearchResponse{
		Results:   results,
		Count:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
