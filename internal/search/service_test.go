package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/models"
	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/vector"
	"go.uber.org/zap"
)

func testService(t *testing.T) (*Service, *embedding.MockEmbedder, vector.Index, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	embedder := embedding.NewMockEmbedder(8)
	index, err := vector.NewFlatIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = index.Close() })
	return NewService(embedder, index, store, 5, 100, zap.NewNop()), embedder, index, store
}

// seed embeds each text and stores a one-chunk page for it.
func seed(t *testing.T, embedder embedding.Embedder, index vector.Index, store storage.Storage, texts ...string) {
	t.Helper()
	ctx := context.Background()
	for _, text := range texts {
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		slots, err := index.Insert(ctx, [][]float32{vec})
		if err != nil {
			t.Fatal(err)
		}
		url := "http://page/" + text
		chunk := &models.Chunk{
			Slot:        slots[0],
			URL:         url,
			Title:       text,
			Text:        text,
			Index:       0,
			TotalChunks: 1,
			CapturedAt:  time.Now().UTC(),
			CaptureID:   "cap",
		}
		if err := store.ReplaceChunks(ctx, url, nil, []*models.Chunk{chunk}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearch_ExactMatchFirst(t *testing.T) {
	svc, embedder, index, store := testService(t)
	seed(t, embedder, index, store, "golang concurrency", "sourdough recipe", "tax filing deadline")

	resp, err := svc.Search(context.Background(), "golang concurrency", 3)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 3 {
		t.Fatalf("count = %d", resp.Count)
	}
	// The mock embedder is deterministic, so the identical text is at distance 0.
	if resp.Results[0].ChunkText != "golang concurrency" {
		t.Errorf("top result = %q", resp.Results[0].ChunkText)
	}
	if resp.Results[0].Distance != 0 {
		t.Errorf("top distance = %v", resp.Results[0].Distance)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Distance < resp.Results[i-1].Distance {
			t.Errorf("results not in ascending distance order at %d", i)
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc, _, _, _ := testService(t)
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Search(context.Background(), q, 5); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("query %q: err = %v", q, err)
		}
	}
}

func TestSearch_TopKHandling(t *testing.T) {
	svc, embedder, index, store := testService(t)
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "page " + string(rune('a'+i))
	}
	seed(t, embedder, index, store, texts...)
	ctx := context.Background()

	// Zero means the configured default (5).
	resp, err := svc.Search(ctx, "anything", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 5 {
		t.Errorf("default top_k: count = %d", resp.Count)
	}

	// Negative is an error.
	if _, err := svc.Search(ctx, "anything", -1); !errors.Is(err, vector.ErrInvalidTopK) {
		t.Errorf("negative top_k: err = %v", err)
	}

	// Requests above the maximum are clamped, not rejected.
	svcSmallMax := NewService(embedder, index, store, 5, 7, nil)
	resp, err = svcSmallMax.Search(ctx, "anything", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 7 {
		t.Errorf("clamped top_k: count = %d", resp.Count)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	svc, _, _, _ := testService(t)
	resp, err := svc.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 0 || len(resp.Results) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearch_OrphanSlotSkipped(t *testing.T) {
	svc, embedder, index, store := testService(t)
	seed(t, embedder, index, store, "known page")

	// Insert a vector with no metadata row behind it.
	ctx := context.Background()
	vec, _ := embedder.Embed(ctx, "orphan")
	if _, err := index.Insert(ctx, [][]float32{vec}); err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Search(ctx, "known page", 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want orphan skipped", resp.Count)
	}
	if resp.Results[0].ChunkText != "known page" {
		t.Errorf("result = %q", resp.Results[0].ChunkText)
	}
}
