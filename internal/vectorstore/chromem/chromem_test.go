package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		out[i] = domain.Chunk{DocumentID: "d", ChunkID: t, Page: 1, Index: i, Text: t}
	}
	return out
}

func TestSearch_Similarity(t *testing.T) {
	ctx := context.Background()
	ix, err := NewStore().Build(ctx, chunks("x", "y", "xy"), [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})
	require.NoError(t, err)

	res, err := ix.Search(ctx, []float32{1, 0}, domain.SearchOptions{Type: domain.SearchSimilarity, K: 10})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "x", res[0].Chunk.Text)
	assert.Equal(t, "xy", res[1].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)
}

func TestSearch_MMR(t *testing.T) {
	ctx := context.Background()
	ix, err := NewStore().Build(ctx, chunks("a", "a-dup", "b"), [][]float32{{1, 0}, {0.99, 0.01}, {0.6, 0.8}})
	require.NoError(t, err)

	res, err := ix.Search(ctx, []float32{1, 0}, domain.SearchOptions{Type: domain.SearchMMR, K: 2, FetchK: 20, Lambda: 0.25})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Chunk.Text)
	assert.Equal(t, "b", res[1].Chunk.Text)
}

func TestBuild_ZeroVectorsKeptAsChunks(t *testing.T) {
	ctx := context.Background()
	ix, err := NewStore().Build(ctx, chunks("zero", "one"), [][]float32{{0, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Len(t, ix.Chunks(), 2)

	res, err := ix.Search(ctx, []float32{0, 1}, domain.SearchOptions{K: 6})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "one", res[0].Chunk.Text)
}

func TestClose_DropsCollection(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	first, err := s.Build(ctx, chunks("a"), [][]float32{{1}})
	require.NoError(t, err)
	second, err := s.Build(ctx, chunks("b"), [][]float32{{1}})
	require.NoError(t, err)
	assert.Len(t, s.db.ListCollections(), 2)

	require.NoError(t, first.Close(ctx))
	assert.Len(t, s.db.ListCollections(), 1)

	res, err := second.Search(ctx, []float32{1}, domain.SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0].Chunk.Text)
}
