package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/philippgille/chromem-go"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore"
)

// Store keeps each built index in its own collection of an in-process chromem database.
type Store struct {
	db  *chromem.DB
	seq atomic.Int64
}

func NewStore() *Store {
	return &Store{db: chromem.NewDB()}
}

func (s *Store) Name() string { return "chromem" }

// Vectors are always supplied by the caller; the collection never embeds on its own.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem collection has no embedding function")
}

func (s *Store) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunks and vectors length mismatch")
	}
	name := fmt.Sprintf("pdfchat-%d", s.seq.Add(1))
	coll, err := s.db.CreateCollection(name, map[string]string{"hnsw:space": "cosine"}, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		// chromem normalises on insert, which is undefined for a zero vector.
		// Such chunks can never rank above zero similarity, so they are left out of the collection.
		if vectorstore.IsZero(vectors[i]) {
			continue
		}
		docs = append(docs, chromem.Document{
			ID: strconv.Itoa(i),
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"chunk_id":    c.ChunkID,
				"source":      c.Source,
				"page":        strconv.Itoa(c.Page),
			},
			Embedding: append([]float32(nil), vectors[i]...),
			Content:   c.Text,
		})
	}
	if len(docs) > 0 {
		if err := coll.AddDocuments(ctx, docs, 4); err != nil {
			_ = s.db.DeleteCollection(name)
			return nil, fmt.Errorf("add documents to %s: %w", name, err)
		}
	}
	return &Index{
		db:     s.db,
		name:   name,
		coll:   coll,
		chunks: append([]domain.Chunk(nil), chunks...),
	}, nil
}

type Index struct {
	db     *chromem.DB
	name   string
	coll   *chromem.Collection
	chunks []domain.Chunk
}

func (ix *Index) Len() int { return len(ix.chunks) }

func (ix *Index) Chunks() []domain.Chunk { return append([]domain.Chunk(nil), ix.chunks...) }

// Search fetches the nearest candidates from the collection and re-ranks them with MMR when asked to.
func (ix *Index) Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	opts = vectorstore.Normalize(opts)
	stored := ix.coll.Count()
	if stored == 0 || vectorstore.IsZero(query) {
		return nil, nil
	}
	n := opts.FetchK
	if opts.Type == domain.SearchSimilarity {
		n = opts.K
	}
	n = min(n, stored)

	hits, err := ix.coll.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", ix.name, err)
	}
	candidates := make([][]float32, len(hits))
	for i, h := range hits {
		candidates[i] = h.Embedding
	}
	ranked := vectorstore.Rank(query, candidates, opts)

	results := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		pos, err := strconv.Atoi(hits[r.Position].ID)
		if err != nil || pos < 0 || pos >= len(ix.chunks) {
			return nil, fmt.Errorf("collection %s returned unknown id %q", ix.name, hits[r.Position].ID)
		}
		results = append(results, domain.SearchResult{Chunk: ix.chunks[pos], Score: r.Score})
	}
	return results, nil
}

// Close drops the collection backing this index.
func (ix *Index) Close(context.Context) error {
	return ix.db.DeleteCollection(ix.name)
}
