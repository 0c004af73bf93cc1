package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %s", req.Model)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "", 3, time.Second)
	emb, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 3 || emb[1] != 0.2 {
		t.Errorf("embedding = %v", emb)
	}
	if e.Dimensions() != 3 {
		t.Errorf("dimensions = %d", e.Dimensions())
	}
}

func TestOllamaEmbedder_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 4, time.Second)
	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	// Connection refused is also ErrUnavailable.
	down := NewOllamaEmbedder("http://127.0.0.1:1", "m", 4, 200*time.Millisecond)
	if _, err := down.Embed(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unreachable backend, got %v", err)
	}
}

func TestOllamaEmbedder_EmbedBatchOrderAndAbort(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 3 {
			http.Error(w, "boom", http.StatusServiceUnavailable)
			return
		}
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 1, time.Second)
	embs, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatal(err)
	}
	if embs[0][0] != 1 || embs[1][0] != 2 {
		t.Errorf("batch order not preserved: %v", embs)
	}

	// Third call fails: the whole batch aborts, no partial result.
	if _, err := e.EmbedBatch(context.Background(), []string{"c", "d"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, _ := e.Embed(context.Background(), "same text")
	b, _ := e.Embed(context.Background(), "same text")
	c, _ := e.Embed(context.Background(), "different text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text produced different embeddings at %d", i)
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}
