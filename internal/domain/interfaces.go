package domain

import (
	"context"
	"time"
)

// Document is one unit of loaded text: a PDF page or a whole plain-text file.
type Document struct {
	ID      string
	Source  string
	Page    int
	Content string
}

// Chunk is a bounded span of a document's text used for embedding and retrieval.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Page       int
	Index      int
	Text       string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Turn is one question/answer exchange.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// Loader reads a file from disk into documents.
type Loader interface {
	Load(ctx context.Context, path string) ([]Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into numeric vectors.
// Prepare fits the embedder to a corpus and returns the embedder to use for that corpus;
// stateless implementations return themselves.
type Embedder interface {
	Name() string
	Prepare(corpus []string) (Embedder, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchType selects how an Index ranks candidates.
type SearchType string

const (
	SearchMMR        SearchType = "mmr"
	SearchSimilarity SearchType = "similarity"
)

// SearchOptions controls a single retrieval.
type SearchOptions struct {
	Type   SearchType
	K      int
	FetchK int
	// Lambda in [0,1]: 1 favours relevance, 0 favours diversity.
	Lambda float64
}

// Index is an immutable set of embedded chunks.
type Index interface {
	Len() int
	Chunks() []Chunk
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	Close(ctx context.Context) error
}

// VectorStore builds fresh indexes; every Build replaces nothing by itself,
// callers own the swap.
type VectorStore interface {
	Name() string
	Build(ctx context.Context, chunks []Chunk, vectors [][]float32) (Index, error)
}

// GenerateRequest carries everything a generator may use to answer.
type GenerateRequest struct {
	Prompt   string
	Question string
	Context  []Chunk
	History  []Turn
}

// Generator produces answer text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
