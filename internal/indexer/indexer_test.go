package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/models"
	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/vector"
)

func testIndexer(t *testing.T, opts ...Option) (*Indexer, storage.Storage, vector.Index) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	embedder := embedding.NewMockEmbedder(8)
	t.Cleanup(func() { _ = embedder.Close() })
	index, err := vector.NewFlatIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = index.Close() })
	chunker, err := NewWindowChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}
	return NewIndexer(store, embedder, index, chunker, opts...), store, index
}

func testDoc(url, text string) *models.Document {
	return &models.Document{
		URL:        url,
		Title:      "Title",
		Text:       text,
		CapturedAt: time.Now().UTC(),
	}
}

func TestIndexDocument_Basic(t *testing.T) {
	idx, store, index := testIndexer(t)
	ctx := context.Background()

	res, err := idx.IndexDocument(ctx, testDoc("http://a", strings.Repeat("x", 26)))
	if err != nil {
		t.Fatal(err)
	}
	// 26 chars at size 10 / overlap 2: starts 0, 8, 16, 24.
	if res.ChunksIndexed != 4 {
		t.Fatalf("chunks indexed = %d", res.ChunksIndexed)
	}
	if index.Size() != 4 {
		t.Errorf("index size = %d", index.Size())
	}
	n, _ := store.CountChunks(ctx)
	if n != 4 {
		t.Errorf("stored chunks = %d", n)
	}
	slots, _ := store.SlotsByURL(ctx, "http://a")
	got, err := store.GetBySlots(ctx, slots)
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range got {
		if ch.TotalChunks != 4 || ch.CaptureID == "" {
			t.Errorf("chunk %d: %+v", ch.Slot, ch)
		}
	}
}

func TestIndexDocument_RevisitReplaces(t *testing.T) {
	idx, store, index := testIndexer(t)
	ctx := context.Background()
	text := strings.Repeat("x", 26)

	if _, err := idx.IndexDocument(ctx, testDoc("http://a", text)); err != nil {
		t.Fatal(err)
	}
	before := index.Size()

	// Same page again: chunk count stays flat, slots are a fresh range.
	if _, err := idx.IndexDocument(ctx, testDoc("http://a", text)); err != nil {
		t.Fatal(err)
	}
	if index.Size() != before {
		t.Errorf("index size = %d after revisit, want %d", index.Size(), before)
	}
	slots, _ := store.SlotsByURL(ctx, "http://a")
	for _, s := range slots {
		if s < int64(before) {
			t.Errorf("slot %d reused from first generation", s)
		}
	}
}

func TestIndexDocument_ShorterRevisit(t *testing.T) {
	idx, store, index := testIndexer(t)
	ctx := context.Background()

	if _, err := idx.IndexDocument(ctx, testDoc("http://a", strings.Repeat("long content ", 10))); err != nil {
		t.Fatal(err)
	}
	res, err := idx.IndexDocument(ctx, testDoc("http://a", "tiny"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunksIndexed != 1 {
		t.Fatalf("chunks indexed = %d", res.ChunksIndexed)
	}
	if index.Size() != 1 {
		t.Errorf("index size = %d, want 1", index.Size())
	}
	slots, _ := store.SlotsByURL(ctx, "http://a")
	if len(slots) != 1 {
		t.Errorf("slots = %v", slots)
	}
}

func TestIndexDocument_EmptyText(t *testing.T) {
	idx, store, index := testIndexer(t)
	ctx := context.Background()

	for _, text := range []string{"", "   \n\t  "} {
		res, err := idx.IndexDocument(ctx, testDoc("http://empty", text))
		if err != nil {
			t.Fatalf("text %q: %v", text, err)
		}
		if res.ChunksIndexed != 0 {
			t.Errorf("text %q: chunks indexed = %d", text, res.ChunksIndexed)
		}
	}
	if index.Size() != 0 {
		t.Errorf("index size = %d", index.Size())
	}
	n, _ := store.CountChunks(ctx)
	if n != 0 {
		t.Errorf("stored chunks = %d", n)
	}
}

type failingEmbedder struct{ *embedding.MockEmbedder }

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, embedding.ErrUnavailable
}

func TestIndexDocument_EmbedFailureMutatesNothing(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	index, _ := vector.NewFlatIndex(8)
	defer index.Close()
	chunker, _ := NewWindowChunker(10, 2)
	idx := NewIndexer(store, &failingEmbedder{embedding.NewMockEmbedder(8)}, index, chunker)

	ctx := context.Background()
	_, err = idx.IndexDocument(ctx, testDoc("http://a", "some page content"))
	if !errors.Is(err, embedding.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if index.Size() != 0 {
		t.Errorf("index size = %d", index.Size())
	}
	n, _ := store.CountChunks(ctx)
	if n != 0 {
		t.Errorf("stored chunks = %d", n)
	}
}

func TestIndexDocument_AppendMode(t *testing.T) {
	idx, store, index := testIndexer(t, WithoutRevisitReplacement())
	ctx := context.Background()
	text := strings.Repeat("x", 26)

	if _, err := idx.IndexDocument(ctx, testDoc("http://a", text)); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.IndexDocument(ctx, testDoc("http://a", text)); err != nil {
		t.Fatal(err)
	}
	if index.Size() != 8 {
		t.Errorf("index size = %d, want 8 (both generations kept)", index.Size())
	}
	slots, _ := store.SlotsByURL(ctx, "http://a")
	if len(slots) != 8 {
		t.Errorf("slots = %v", slots)
	}
}

func TestPreprocess(t *testing.T) {
	got := Preprocess("  hello\n\n  world\ttabbed  ")
	if got != "hello world tabbed" {
		t.Errorf("Preprocess = %q", got)
	}
	if Preprocess("\n \t") != "" {
		t.Error("whitespace-only text should normalize to empty")
	}
}
