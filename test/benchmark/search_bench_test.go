package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/indexer"
	"github.com/tadoru/tadoru/internal/vector"
)

func BenchmarkFlatIndexSearch(b *testing.B) {
	idx, _ := vector.NewFlatIndex(384)
	ctx := context.Background()
	vecs := make([][]float32, 1000)
	for i := 0; i < 1000; i++ {
		vecs[i] = make([]float32, 384)
		vecs[i][0] = float32(i) / 1000
	}
	_, _ = idx.Insert(ctx, vecs)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}

func BenchmarkFlatIndexInsertRemove(b *testing.B) {
	idx, _ := vector.NewFlatIndex(64)
	ctx := context.Background()
	vec := make([]float32, 64)
	vec[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		slots, _ := idx.Insert(ctx, [][]float32{vec})
		_ = idx.Remove(ctx, slots)
	}
}

func BenchmarkSquaredL2(b *testing.B) {
	x := make([]float32, 768)
	y := make([]float32, 768)
	for i := range x {
		x[i] = float32(i) / 768
		y[i] = float32(768-i) / 768
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = vector.SquaredL2(x, y)
	}
}

func BenchmarkWindowChunker(b *testing.B) {
	c, _ := indexer.NewWindowChunker(500, 50)
	text := ""
	for i := 0; i < 200; i++ {
		text += fmt.Sprintf("Sentence number %d with some filler words to pad the page. ", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Chunk(text)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
