// Package cli provides CLI utilities for Tadoru.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tadoru/tadoru/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
	// OutputCompact is one line per hit, suitable for piping.
	OutputCompact SearchOutputFormat = "compact"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Count, response.QueryTime)
	for rank, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f | Chunk %d/%d\n",
			rank+1, result.Distance, result.ChunkIndex+1, result.TotalChunks)
		if result.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", result.Title)
		}
		fmt.Fprintf(w, "URL: %s\n", result.URL)
		fmt.Fprintf(w, "Visited: %s\n", result.Timestamp.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "\n%s\n", Truncate(result.ChunkText, 200))
		fmt.Fprintln(w)
	}
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, result := range response.Results {
		fmt.Fprintf(w, "%.4f\t%s\t%s\n", result.Distance, result.URL, TruncateWords(result.ChunkText, 12))
	}
}

// WriteStats writes an index stats summary to w.
func WriteStats(w io.Writer, stats *models.StatsResponse) {
	fmt.Fprintf(w, "Pages:      %d\n", stats.Documents)
	fmt.Fprintf(w, "Chunks:     %d\n", stats.Chunks)
	fmt.Fprintf(w, "Vectors:    %d\n", stats.IndexSize)
	if stats.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage: %.1f MB\n", float64(*stats.DiskUsageBytes)/(1024*1024))
	}
	if stats.Config != nil {
		fmt.Fprintf(w, "Dimensions: %d (%s)\n", stats.Config.Dimensions, stats.Config.Metric)
		fmt.Fprintf(w, "Chunking:   %d chars, %d overlap\n", stats.Config.ChunkSize, stats.Config.ChunkOverlap)
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
