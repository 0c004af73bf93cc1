package models

import (
	"fmt"
	"strings"
	"time"
)

// IndexRequest is the inbound capture payload sent by the browser extension.
type IndexRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

// Document validates the request and converts it to a Document.
// Timestamp is RFC3339; an empty timestamp means "now". URL must be non-empty.
func (r *IndexRequest) Document() (*Document, error) {
	if strings.TrimSpace(r.URL) == "" {
		return nil, fmt.Errorf("url is required")
	}
	capturedAt := time.Now()
	if r.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", r.Timestamp, err)
		}
		capturedAt = t
	}
	return &Document{
		URL:         r.URL,
		Title:       r.Title,
		Description: r.Description,
		Text:        r.Text,
		CapturedAt:  capturedAt,
	}, nil
}

// IndexResult is the response to an index call.
type IndexResult struct {
	ChunksIndexed int `json:"chunks_indexed"`
}

// SearchRequest is the inbound search payload. TopK of 0 means "use the default".
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult is one ranked hit. Distance is the squared Euclidean distance
// reported by the vector index, untouched by any re-ranking.
type SearchResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ChunkText   string    `json:"chunk_text"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	Timestamp   time.Time `json:"timestamp"`
	Distance    float64   `json:"distance"`
}

// SearchResponse is the response to a search call.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Count     int             `json:"count"`
	QueryTime int64           `json:"query_time_ms"`
}

// StatsConfig describes the running configuration in a stats response.
type StatsConfig struct {
	Dimensions   int    `json:"dimensions"`
	Metric       string `json:"metric"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	StateDir     string `json:"state_dir,omitempty"`
}

// StatsResponse is the response to a stats call.
type StatsResponse struct {
	IndexSize      int          `json:"index_size"`
	Documents      int64        `json:"documents"`
	Chunks         int64        `json:"chunks"`
	DiskUsageBytes *int64       `json:"disk_usage_bytes,omitempty"`
	Config         *StatsConfig `json:"config,omitempty"`
}
