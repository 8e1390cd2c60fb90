package memory

import (
	"context"
	"errors"
	"fmt"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore"
)

// Store builds in-memory indexes searched by brute force.
type Store struct{}

func NewStore() *Store { return &Store{} }

func (s *Store) Name() string { return "memory" }

// Build copies chunks and vectors into a new immutable Index.
func (s *Store) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunks and vectors length mismatch")
	}
	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	copied := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector %d dimension %d, want %d", i, len(v), dimension)
		}
		copied[i] = append([]float32(nil), v...)
	}
	return &Index{
		dimension: dimension,
		chunks:    append([]domain.Chunk(nil), chunks...),
		vectors:   copied,
	}, nil
}

// Index is safe for concurrent readers because it never changes after Build.
type Index struct {
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
}

func (ix *Index) Len() int { return len(ix.chunks) }

func (ix *Index) Chunks() []domain.Chunk { return append([]domain.Chunk(nil), ix.chunks...) }

func (ix *Index) Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query dimension %d, want %d", len(query), ix.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ranked := vectorstore.Rank(query, ix.vectors, opts)
	results := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, domain.SearchResult{Chunk: ix.chunks[r.Position], Score: r.Score})
	}
	return results, nil
}

func (ix *Index) Close(context.Context) error { return nil }
