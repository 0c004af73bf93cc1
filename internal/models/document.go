// Package models defines core data structures for captures, chunks, and search results.
package models

import "time"

// Document is a single page capture handed over by the capture agent.
// It is consumed by the indexing pipeline and discarded after chunking;
// only chunks are persisted.
type Document struct {
	URL         string
	Title       string
	Description string
	Text        string
	CapturedAt  time.Time
}

// Chunk is a bounded window of a document's text, the unit of embedding and
// retrieval. Slot is the vector index handle of the chunk's embedding; the
// metadata store keys chunks by slot so both stores stay aligned.
type Chunk struct {
	Slot        int64     `json:"slot" db:"slot"`
	URL         string    `json:"url" db:"url"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Text        string    `json:"text" db:"content"`
	Index       int       `json:"chunk_index" db:"chunk_index"`
	TotalChunks int       `json:"total_chunks" db:"total_chunks"`
	CapturedAt  time.Time `json:"captured_at" db:"captured_at"`
	CaptureID   string    `json:"capture_id" db:"capture_id"`
}
